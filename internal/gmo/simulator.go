package gmo

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"fx-trading-bot/internal/interfaces"
	"fx-trading-bot/internal/types"
)

// Simulator is the dry-run Exchange. Orders and closes never touch the
// network: they mutate an in-memory book and come back with SIM-
// prefixed IDs and Simulated set. Market data is passed through to a
// real client when one is supplied, otherwise synthesized
// deterministically so the whole pipeline runs offline.
type Simulator struct {
	market interfaces.MarketData // nil means synthetic candles
	now    func() time.Time

	mu        sync.Mutex
	seq       int
	positions []types.Position
}

// NewSimulator builds a simulator. market may be nil; pass the live
// client to analyze real prices while simulating execution.
func NewSimulator(market interfaces.MarketData) *Simulator {
	return &Simulator{
		market: market,
		now:    time.Now,
	}
}

func (s *Simulator) nextID() string {
	s.seq++
	return fmt.Sprintf("SIM-%d", s.seq)
}

// Candles returns one day of bars, live if a market feed is attached,
// synthetic otherwise.
func (s *Simulator) Candles(ctx context.Context, symbol, interval string, date time.Time) ([]types.Candle, error) {
	if s.market != nil {
		return s.market.Candles(ctx, symbol, interval, date)
	}
	return syntheticCandles(symbol, interval, date), nil
}

func (s *Simulator) CandleRange(ctx context.Context, symbol, interval string, days int) ([]types.Candle, error) {
	if s.market != nil {
		return s.market.CandleRange(ctx, symbol, interval, days)
	}
	if days < 1 {
		days = 1
	}
	today := s.now().UTC()
	var merged []types.Candle
	for i := days - 1; i >= 0; i-- {
		merged = append(merged, syntheticCandles(symbol, interval, today.AddDate(0, 0, -i))...)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].OpenTime.Before(merged[j].OpenTime)
	})
	return merged, nil
}

// AccountAssets reports a fixed healthy margin account.
func (s *Simulator) AccountAssets(ctx context.Context) (types.AccountAssets, error) {
	return types.AccountAssets{
		Balance:         "1000000",
		AvailableAmount: "900000",
		Margin:          "100000",
		Equity:          "1000000",
		ProfitLoss:      "0",
	}, nil
}

// PlaceOrder fills immediately at the latest synthetic (or live)
// close and opens a tracked position.
func (s *Simulator) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	price, err := s.latestPrice(ctx, req.Symbol)
	if err != nil {
		return types.OrderResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	now := s.now().UTC()
	s.positions = append(s.positions, types.Position{
		PositionID: id,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Size:       req.Size,
		EntryPrice: formatPrice(req.Symbol, price),
		LossGain:   "0",
		OpenedAt:   now,
	})
	return types.OrderResult{
		OrderID:       id,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Size:          req.Size,
		ExecutionType: string(req.ExecutionType),
		Status:        "EXECUTED",
		Timestamp:     now,
		Simulated:     true,
	}, nil
}

// CancelOrder is a no-op: simulated orders fill instantly, so there is
// never anything active to cancel.
func (s *Simulator) CancelOrder(ctx context.Context, orderID string) error {
	return nil
}

// Orders always comes back empty for the same reason.
func (s *Simulator) Orders(ctx context.Context, symbol, orderID string) ([]types.Order, error) {
	return nil, nil
}

func (s *Simulator) Positions(ctx context.Context, symbol string) ([]types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Position, 0, len(s.positions))
	for _, p := range s.positions {
		if symbol == "" || p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Simulator) ClosePosition(ctx context.Context, req types.CloseRequest) (types.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.positions {
		if p.PositionID == req.PositionID {
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
			return types.OrderResult{
				OrderID:       s.nextID(),
				Symbol:        req.Symbol,
				Side:          req.Side,
				Size:          req.Size,
				ExecutionType: string(types.ExecutionMarket),
				Status:        "EXECUTED",
				Timestamp:     s.now().UTC(),
				Simulated:     true,
			}, nil
		}
	}
	return types.OrderResult{}, &OrderError{
		Op:  "close position " + req.PositionID,
		Err: fmt.Errorf("position not found"),
	}
}

func (s *Simulator) CloseAllPositions(ctx context.Context, symbol string, held types.Side) (types.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.positions[:0]
	closed := 0
	for _, p := range s.positions {
		if p.Symbol == symbol && p.Side == held {
			closed += p.Size
			continue
		}
		kept = append(kept, p)
	}
	s.positions = kept
	return types.OrderResult{
		OrderID:       s.nextID(),
		Symbol:        symbol,
		Side:          held.Opposite(),
		Size:          closed,
		ExecutionType: string(types.ExecutionMarket),
		Status:        "EXECUTED",
		Timestamp:     s.now().UTC(),
		Simulated:     true,
	}, nil
}

func (s *Simulator) latestPrice(ctx context.Context, symbol string) (float64, error) {
	candles, err := s.CandleRange(ctx, symbol, "5min", 1)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, &APIError{HTTPStatus: 200, Message: "no candles for " + symbol}
	}
	return candles[len(candles)-1].Close, nil
}

func formatPrice(symbol string, price float64) string {
	if strings.HasSuffix(symbol, "_JPY") {
		return fmt.Sprintf("%.3f", price)
	}
	return fmt.Sprintf("%.5f", price)
}

// syntheticCandles generates a deterministic intraday walk for one
// day: a slow sine drift plus hash-derived jitter, so repeated runs
// and tests see identical series.
func syntheticCandles(symbol, interval string, date time.Time) []types.Candle {
	step := intervalDuration(interval)
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	bars := int(24 * time.Hour / step)

	base := 1.1000
	pip := 0.0001
	if strings.HasSuffix(symbol, "_JPY") {
		base = 150.00
		pip = 0.01
	}
	seed := hashSeed(symbol + date.Format("20060102"))

	candles := make([]types.Candle, 0, bars)
	price := base
	for i := 0; i < bars; i++ {
		drift := math.Sin(float64(i)/18.0+float64(seed%7)) * 20 * pip
		jitter := float64(int(seed>>(uint(i)%24)&0xf)-8) * pip
		open := price
		close := base + drift + jitter
		high := math.Max(open, close) + 2*pip
		low := math.Min(open, close) - 2*pip
		candles = append(candles, types.Candle{
			OpenTime: dayStart.Add(time.Duration(i) * step),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    close,
		})
		price = close
	}
	return candles
}

func hashSeed(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func intervalDuration(interval string) time.Duration {
	switch interval {
	case "1min":
		return time.Minute
	case "5min":
		return 5 * time.Minute
	case "10min":
		return 10 * time.Minute
	case "15min":
		return 15 * time.Minute
	case "30min":
		return 30 * time.Minute
	case "1hour":
		return time.Hour
	case "4hour":
		return 4 * time.Hour
	case "8hour":
		return 8 * time.Hour
	case "12hour":
		return 12 * time.Hour
	case "1day":
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}
