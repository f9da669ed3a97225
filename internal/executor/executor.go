// Package executor orchestrates one trading cycle: signal, risk gate,
// order submission, and position maintenance.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fx-trading-bot/internal/analyzer"
	"fx-trading-bot/internal/config"
	"fx-trading-bot/internal/engine"
	"fx-trading-bot/internal/gmo"
	"fx-trading-bot/internal/interfaces"
	"fx-trading-bot/internal/logger"
	"fx-trading-bot/internal/risk"
	"fx-trading-bot/internal/trace"
	"fx-trading-bot/internal/types"
)

// TradeExecutor runs the per-symbol pipeline. A per-symbol lock makes
// the position-count check and the order submission one atomic step,
// so a cycle can never double-submit for the same symbol.
type TradeExecutor struct {
	engine   *engine.RuleEngine
	risk     *risk.Manager
	exchange interfaces.Exchange
	store    interfaces.SignalStore // nil disables trade-result persistence

	symbols               []string
	interval              string
	minConfidence         float64
	defaultSize           int
	executionType         types.ExecutionType
	maxPositionsPerSymbol int
	maxTotalPositions     int

	mu          sync.Mutex
	symbolLocks map[string]*sync.Mutex
	now         func() time.Time
}

func New(eng *engine.RuleEngine, rm *risk.Manager, exchange interfaces.Exchange, store interfaces.SignalStore, cfg *config.Config) *TradeExecutor {
	return &TradeExecutor{
		engine:                eng,
		risk:                  rm,
		exchange:              exchange,
		store:                 store,
		symbols:               cfg.Symbols,
		interval:              cfg.Interval,
		minConfidence:         cfg.Signal.MinConfidence,
		defaultSize:           cfg.Trade.DefaultSize,
		executionType:         types.ExecutionType(cfg.Trade.ExecutionType),
		maxPositionsPerSymbol: cfg.Trade.MaxPositionsPerSymbol,
		maxTotalPositions:     cfg.Trade.MaxTotalPositions,
		symbolLocks:           map[string]*sync.Mutex{},
		now:                   time.Now,
	}
}

func (t *TradeExecutor) lockFor(symbol string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.symbolLocks[symbol]
	if !ok {
		l = &sync.Mutex{}
		t.symbolLocks[symbol] = l
	}
	return l
}

// ExecuteSignals runs one full cycle over the configured symbols and
// returns one TradeResult per symbol. A failure on one symbol never
// stops the others.
func (t *TradeExecutor) ExecuteSignals(ctx context.Context) []types.TradeResult {
	results := make([]types.TradeResult, 0, len(t.symbols))
	for _, symbol := range t.symbols {
		res := t.executeSymbol(ctx, symbol)
		t.record(ctx, res)
		results = append(results, res)
	}
	return results
}

func (t *TradeExecutor) executeSymbol(ctx context.Context, symbol string) types.TradeResult {
	ctx, span := trace.StartSpan(ctx, "executor.ExecuteSymbol")
	defer span.End()

	lock := t.lockFor(symbol)
	lock.Lock()
	defer lock.Unlock()

	sig, err := t.engine.GenerateSignal(ctx, symbol)
	if err != nil {
		return t.failed(symbol, err)
	}
	if sig.Decision == types.DecisionHold {
		return t.skipped(symbol, "hold signal")
	}
	if sig.Confidence < t.minConfidence {
		return t.skipped(symbol, fmt.Sprintf("low confidence (%.2f < %.2f)", sig.Confidence, t.minConfidence))
	}

	positions, err := t.exchange.Positions(ctx, "")
	if err != nil {
		return t.failed(symbol, fmt.Errorf("query positions: %w", err))
	}
	symbolCount := 0
	for _, p := range positions {
		if p.Symbol == symbol {
			symbolCount++
		}
	}
	if symbolCount >= t.maxPositionsPerSymbol || len(positions) >= t.maxTotalPositions {
		return t.skipped(symbol, "position limit reached")
	}

	assets, err := t.exchange.AccountAssets(ctx)
	if err != nil {
		return t.failed(symbol, fmt.Errorf("query account assets: %w", err))
	}

	side := types.SideBuy
	if sig.Decision == types.DecisionSell {
		side = types.SideSell
	}
	if allowed, reason := t.risk.CheckTradeAllowed(ctx, symbol, side, t.defaultSize, assets); !allowed {
		return t.skipped(symbol, "risk check failed: "+reason)
	}

	order, err := t.exchange.PlaceOrder(ctx, types.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Size:          t.defaultSize,
		ExecutionType: t.executionType,
	})
	if err != nil {
		return t.failed(symbol, err)
	}

	logger.Trade(ctx, symbol, string(side), t.defaultSize, order.OrderID,
		"confidence", sig.Confidence,
		"simulated", order.Simulated)
	return types.TradeResult{
		Outcome:   types.OutcomeExecuted,
		Symbol:    symbol,
		Action:    side,
		Size:      t.defaultSize,
		OrderID:   order.OrderID,
		Reason:    sig.Rationale,
		Timestamp: t.now().UTC(),
		Simulated: order.Simulated,
	}
}

func (t *TradeExecutor) skipped(symbol, reason string) types.TradeResult {
	return types.TradeResult{
		Outcome:   types.OutcomeSkipped,
		Symbol:    symbol,
		Reason:    reason,
		Timestamp: t.now().UTC(),
	}
}

func (t *TradeExecutor) failed(symbol string, err error) types.TradeResult {
	return types.TradeResult{
		Outcome:   types.OutcomeFailed,
		Symbol:    symbol,
		ErrorKind: errorKind(err),
		Reason:    err.Error(),
		Timestamp: t.now().UTC(),
	}
}

func (t *TradeExecutor) record(ctx context.Context, res types.TradeResult) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveTradeResult(ctx, res); err != nil {
		logger.Warn(ctx, "trade result persistence failed",
			"symbol", res.Symbol, "error", err.Error())
	}
}

func errorKind(err error) string {
	var dataErr *analyzer.DataUnavailableError
	switch {
	case gmo.IsAuth(err):
		return "auth"
	case gmo.IsRateLimit(err):
		return "rate_limit"
	case gmo.IsInsufficientFunds(err):
		return "insufficient_funds"
	case errors.As(err, &dataErr):
		return "data_unavailable"
	default:
		var orderErr *gmo.OrderError
		if errors.As(err, &orderErr) {
			return "order"
		}
		var apiErr *gmo.APIError
		if errors.As(err, &apiErr) {
			return "api"
		}
		return "internal"
	}
}

// ClosedPosition reports one position settled by the sweep.
type ClosedPosition struct {
	Position types.Position
	Reason   string
	Result   types.OrderResult
}

// SweepPositions walks every open position and closes the ones whose
// stop-loss or take-profit level has been crossed, or that exceeded
// the maximum holding time. Each close is fed back into the risk
// counters using the position's reported loss/gain.
func (t *TradeExecutor) SweepPositions(ctx context.Context) ([]ClosedPosition, error) {
	ctx, span := trace.StartSpan(ctx, "executor.SweepPositions")
	defer span.End()

	positions, err := t.exchange.Positions(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}

	var closed []ClosedPosition
	prices := map[string]decimal.Decimal{}
	for _, pos := range positions {
		reason := ""
		if hit, ageReason := t.risk.CheckPositionAge(pos.OpenedAt); hit {
			reason = ageReason
		} else {
			price, err := t.latestPrice(ctx, prices, pos.Symbol)
			if err != nil {
				logger.Warn(ctx, "price fetch failed during sweep",
					"symbol", pos.Symbol, "error", err.Error())
				continue
			}
			hit, exitReason := t.risk.ShouldClosePosition(pos, price)
			if !hit {
				continue
			}
			reason = exitReason
		}

		result, err := t.exchange.ClosePosition(ctx, types.CloseRequest{
			PositionID:    pos.PositionID,
			Symbol:        pos.Symbol,
			Side:          pos.Side.Opposite(),
			Size:          pos.Size,
			ExecutionType: types.ExecutionMarket,
		})
		if err != nil {
			logger.ErrorWithErr(ctx, "position close failed", err,
				"symbol", pos.Symbol, "position_id", pos.PositionID)
			continue
		}

		pl, perr := strconv.ParseFloat(strings.TrimSpace(pos.LossGain), 64)
		if perr != nil {
			pl = 0
		}
		t.risk.RecordTradeResult(ctx, pl, pl >= 0)
		logger.Risk(ctx, pos.Symbol, "position closed",
			"position_id", pos.PositionID,
			"reason", reason,
			"loss_gain", pos.LossGain)
		closed = append(closed, ClosedPosition{Position: pos, Reason: reason, Result: result})
	}
	return closed, nil
}

// latestPrice fetches the most recent close, cached per symbol for the
// duration of one sweep.
func (t *TradeExecutor) latestPrice(ctx context.Context, cache map[string]decimal.Decimal, symbol string) (decimal.Decimal, error) {
	if p, ok := cache[symbol]; ok {
		return p, nil
	}
	candles, err := t.exchange.CandleRange(ctx, symbol, t.interval, 1)
	if err != nil {
		return decimal.Zero, err
	}
	if len(candles) == 0 {
		return decimal.Zero, fmt.Errorf("no candles for %s", symbol)
	}
	p := decimal.NewFromFloat(candles[len(candles)-1].Close)
	cache[symbol] = p
	return p, nil
}

// ClosePositionsForSymbol bulk-closes every open position on the
// symbol, one bulk order per held side.
func (t *TradeExecutor) ClosePositionsForSymbol(ctx context.Context, symbol string) ([]types.OrderResult, error) {
	positions, err := t.exchange.Positions(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("query positions for %s: %w", symbol, err)
	}
	held := map[types.Side]bool{}
	for _, p := range positions {
		held[p.Side] = true
	}
	var results []types.OrderResult
	for _, side := range []types.Side{types.SideBuy, types.SideSell} {
		if !held[side] {
			continue
		}
		res, err := t.exchange.CloseAllPositions(ctx, symbol, side)
		if err != nil {
			return results, fmt.Errorf("close %s positions for %s: %w", side, symbol, err)
		}
		logger.Trade(ctx, symbol, string(res.Side), res.Size, res.OrderID, "bulk_close", true)
		results = append(results, res)
	}
	return results, nil
}

// CurrentPositions is a pass-through with consistent error wrapping.
func (t *TradeExecutor) CurrentPositions(ctx context.Context, symbol string) ([]types.Position, error) {
	positions, err := t.exchange.Positions(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	return positions, nil
}

// AccountSummary returns the account snapshot plus the current risk
// state.
func (t *TradeExecutor) AccountSummary(ctx context.Context) (types.AccountAssets, risk.Summary, error) {
	assets, err := t.exchange.AccountAssets(ctx)
	if err != nil {
		return types.AccountAssets{}, risk.Summary{}, fmt.Errorf("query account assets: %w", err)
	}
	return assets, t.risk.Snapshot(), nil
}
