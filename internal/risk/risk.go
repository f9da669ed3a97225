// Package risk owns the stateful trading-day policy: loss and trade
// counters, the consecutive-loss halt, margin gating, and stop-loss /
// take-profit levels.
package risk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fx-trading-bot/internal/config"
	"fx-trading-bot/internal/logger"
	"fx-trading-bot/internal/types"
)

// Level summarizes how close the day is to its risk limits.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// State is the mutable trading-day state. It is owned by Manager and
// only ever touched under its lock.
type State struct {
	DailyLossAccumulated float64
	DailyTradeCount      int
	ConsecutiveLosses    int
	TradingHalted        bool
	LastReset            time.Time
}

// Summary is a read-only snapshot of the current state plus limits.
type Summary struct {
	State                State
	Level                Level
	MaxDailyLoss         float64
	MaxDailyTrades       int
	MaxConsecutiveLosses int
}

// Manager gates trades and computes exit levels. Safe for concurrent
// use.
type Manager struct {
	maxDailyLoss         float64
	maxDailyTrades       int
	maxConsecutiveLosses int
	minMarginRatio       decimal.Decimal
	stopLossPips         decimal.Decimal
	takeProfitPips       decimal.Decimal
	maxPositionHours     int
	location             *time.Location
	now                  func() time.Time

	mu    sync.Mutex
	state State
}

func NewManager(cfg *config.Config) (*Manager, error) {
	loc, err := time.LoadLocation(cfg.Risk.ResetTimezone)
	if err != nil {
		return nil, fmt.Errorf("load reset timezone %q: %w", cfg.Risk.ResetTimezone, err)
	}
	m := &Manager{
		maxDailyLoss:         cfg.Risk.MaxDailyLoss,
		maxDailyTrades:       cfg.Risk.MaxDailyTrades,
		maxConsecutiveLosses: cfg.Risk.MaxConsecutiveLosses,
		minMarginRatio:       decimal.NewFromFloat(cfg.Risk.MinMarginRatio),
		stopLossPips:         decimal.NewFromFloat(cfg.Risk.StopLossPips),
		takeProfitPips:       decimal.NewFromFloat(cfg.Risk.TakeProfitPips),
		maxPositionHours:     cfg.Risk.MaxPositionHours,
		location:             loc,
		now:                  time.Now,
	}
	m.state.LastReset = m.now()
	return m, nil
}

// isNewDay reports whether now falls on a later calendar date than
// lastReset in the reset timezone. Pure so the boundary is testable.
func isNewDay(now, lastReset time.Time, loc *time.Location) bool {
	ny, nm, nd := now.In(loc).Date()
	ly, lm, ld := lastReset.In(loc).Date()
	return ny != ly || nm != lm || nd != ld
}

// resetDayLocked clears the daily counters at a day boundary. The
// consecutive-loss streak and halt survive: they end only with an
// explicit reset.
func (m *Manager) resetDayLocked(now time.Time) {
	if !isNewDay(now, m.state.LastReset, m.location) {
		return
	}
	m.state.DailyLossAccumulated = 0
	m.state.DailyTradeCount = 0
	m.state.LastReset = now
}

// CheckTradeAllowed runs every gating check. The reason names the
// first failed gate.
func (m *Manager) CheckTradeAllowed(ctx context.Context, symbol string, side types.Side, size int, assets types.AccountAssets) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDayLocked(m.now())

	if m.state.TradingHalted {
		return m.denied(ctx, symbol, fmt.Sprintf("trading halted after %d consecutive losses", m.state.ConsecutiveLosses))
	}
	if m.state.DailyLossAccumulated >= m.maxDailyLoss {
		return m.denied(ctx, symbol, fmt.Sprintf("daily loss limit reached (%.0f >= %.0f)", m.state.DailyLossAccumulated, m.maxDailyLoss))
	}
	if m.state.DailyTradeCount >= m.maxDailyTrades {
		return m.denied(ctx, symbol, fmt.Sprintf("daily trade limit reached (%d >= %d)", m.state.DailyTradeCount, m.maxDailyTrades))
	}
	if m.state.ConsecutiveLosses >= m.maxConsecutiveLosses {
		m.state.TradingHalted = true
		return m.denied(ctx, symbol, fmt.Sprintf("consecutive loss limit reached (%d)", m.state.ConsecutiveLosses))
	}
	if ok, reason := m.marginOK(assets); !ok {
		return m.denied(ctx, symbol, reason)
	}
	return true, ""
}

func (m *Manager) denied(ctx context.Context, symbol, reason string) (bool, string) {
	logger.Risk(ctx, symbol, "trade denied", "reason", reason)
	return false, reason
}

// marginOK checks equity/margin against the configured floor. Margin
// of zero means no open positions, which always passes. Amounts are
// string decimals straight off the wire.
func (m *Manager) marginOK(assets types.AccountAssets) (bool, string) {
	margin, err := decimal.NewFromString(strings.TrimSpace(assets.Margin))
	if err != nil {
		return false, "unreadable margin amount: " + assets.Margin
	}
	if margin.IsZero() {
		return true, ""
	}
	equity, err := decimal.NewFromString(strings.TrimSpace(assets.Equity))
	if err != nil {
		return false, "unreadable equity amount: " + assets.Equity
	}
	ratio := equity.Div(margin).Mul(decimal.NewFromInt(100))
	if ratio.LessThan(m.minMarginRatio) {
		return false, fmt.Sprintf("margin ratio %s%% below minimum %s%%", ratio.StringFixed(1), m.minMarginRatio.String())
	}
	return true, ""
}

// PipValue is 0.01 for JPY-quoted pairs and 0.0001 otherwise.
func PipValue(symbol string) decimal.Decimal {
	if strings.HasSuffix(symbol, "_JPY") {
		return decimal.New(1, -2)
	}
	return decimal.New(1, -4)
}

// StopLossPrice computes the exit level guarding a position: entry
// minus the stop distance for BUY, plus for SELL. Decimal math keeps
// 150.00 - 50 pips exactly 149.50.
func (m *Manager) StopLossPrice(symbol string, side types.Side, entryPrice decimal.Decimal) decimal.Decimal {
	distance := m.stopLossPips.Mul(PipValue(symbol))
	if side == types.SideBuy {
		return entryPrice.Sub(distance)
	}
	return entryPrice.Add(distance)
}

// TakeProfitPrice is the profit-taking level: entry plus the target
// distance for BUY, minus for SELL.
func (m *Manager) TakeProfitPrice(symbol string, side types.Side, entryPrice decimal.Decimal) decimal.Decimal {
	distance := m.takeProfitPips.Mul(PipValue(symbol))
	if side == types.SideBuy {
		return entryPrice.Add(distance)
	}
	return entryPrice.Sub(distance)
}

// ShouldClosePosition reports whether currentPrice has crossed the
// position's stop-loss or take-profit level.
func (m *Manager) ShouldClosePosition(pos types.Position, currentPrice decimal.Decimal) (bool, string) {
	entry, err := decimal.NewFromString(strings.TrimSpace(pos.EntryPrice))
	if err != nil {
		return false, ""
	}
	stop := m.StopLossPrice(pos.Symbol, pos.Side, entry)
	target := m.TakeProfitPrice(pos.Symbol, pos.Side, entry)

	if pos.Side == types.SideBuy {
		if currentPrice.LessThanOrEqual(stop) {
			return true, fmt.Sprintf("stop loss hit: %s <= %s", currentPrice, stop)
		}
		if currentPrice.GreaterThanOrEqual(target) {
			return true, fmt.Sprintf("take profit hit: %s >= %s", currentPrice, target)
		}
		return false, ""
	}
	if currentPrice.GreaterThanOrEqual(stop) {
		return true, fmt.Sprintf("stop loss hit: %s >= %s", currentPrice, stop)
	}
	if currentPrice.LessThanOrEqual(target) {
		return true, fmt.Sprintf("take profit hit: %s <= %s", currentPrice, target)
	}
	return false, ""
}

// CheckPositionAge reports whether a position opened at openedAt has
// exceeded the maximum holding time.
func (m *Manager) CheckPositionAge(openedAt time.Time) (bool, string) {
	held := m.now().Sub(openedAt)
	limit := time.Duration(m.maxPositionHours) * time.Hour
	if held > limit {
		return true, fmt.Sprintf("position held %.1fh, limit %dh", held.Hours(), m.maxPositionHours)
	}
	return false, ""
}

// RecordTradeResult folds one closed trade into the day state. A loss
// grows the accumulated loss and the streak; a profitable close resets
// the streak. Reaching the streak limit halts trading.
func (m *Manager) RecordTradeResult(ctx context.Context, profitLoss float64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDayLocked(m.now())

	m.state.DailyTradeCount++
	if success {
		m.state.ConsecutiveLosses = 0
	} else {
		if profitLoss < 0 {
			m.state.DailyLossAccumulated += -profitLoss
		}
		m.state.ConsecutiveLosses++
		if m.state.ConsecutiveLosses >= m.maxConsecutiveLosses {
			m.state.TradingHalted = true
			logger.Risk(ctx, "", "trading halted",
				"consecutive_losses", m.state.ConsecutiveLosses)
		}
	}
}

// ResetHalt clears the halt and the loss streak. This is the explicit
// operator action required after a consecutive-loss stop.
func (m *Manager) ResetHalt(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.TradingHalted = false
	m.state.ConsecutiveLosses = 0
	logger.Risk(ctx, "", "halt reset")
}

// Snapshot returns the current state and derived risk level.
func (m *Manager) Snapshot() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDayLocked(m.now())
	return Summary{
		State:                m.state,
		Level:                m.levelLocked(),
		MaxDailyLoss:         m.maxDailyLoss,
		MaxDailyTrades:       m.maxDailyTrades,
		MaxConsecutiveLosses: m.maxConsecutiveLosses,
	}
}

func (m *Manager) levelLocked() Level {
	if m.state.TradingHalted {
		return LevelCritical
	}
	worst := 0.0
	if m.maxDailyLoss > 0 {
		worst = m.state.DailyLossAccumulated / m.maxDailyLoss
	}
	if m.maxDailyTrades > 0 {
		if f := float64(m.state.DailyTradeCount) / float64(m.maxDailyTrades); f > worst {
			worst = f
		}
	}
	if m.maxConsecutiveLosses > 0 {
		if f := float64(m.state.ConsecutiveLosses) / float64(m.maxConsecutiveLosses); f > worst {
			worst = f
		}
	}
	switch {
	case worst >= 0.8:
		return LevelHigh
	case worst >= 0.5:
		return LevelMedium
	default:
		return LevelLow
	}
}
