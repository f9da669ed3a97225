package risk

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fx-trading-bot/internal/config"
	"fx-trading-bot/internal/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func healthyAssets() types.AccountAssets {
	return types.AccountAssets{
		Balance:         "1000000",
		AvailableAmount: "900000",
		Margin:          "100000",
		Equity:          "1000000",
		ProfitLoss:      "0",
	}
}

func TestIsNewDay(t *testing.T) {
	utc := time.UTC
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}

	lastReset := time.Date(2026, 3, 1, 23, 30, 0, 0, utc)
	later := time.Date(2026, 3, 2, 0, 30, 0, 0, utc)

	if isNewDay(lastReset, lastReset, utc) {
		t.Error("Same instant must not be a new day")
	}
	if !isNewDay(later, lastReset, utc) {
		t.Error("Expected UTC midnight crossing to be a new day")
	}
	// The same two instants sit on the same calendar date in New York.
	if isNewDay(later, lastReset, ny) {
		t.Error("Expected no day change in America/New_York")
	}
}

func TestStopLossTakeProfitExactDecimals(t *testing.T) {
	m := newTestManager(t)
	entry := decimal.RequireFromString("150.00")

	sl := m.StopLossPrice("USD_JPY", types.SideBuy, entry)
	if !sl.Equal(decimal.RequireFromString("149.50")) {
		t.Errorf("Expected stop loss 149.50, got %s", sl)
	}
	tp := m.TakeProfitPrice("USD_JPY", types.SideBuy, entry)
	if !tp.Equal(decimal.RequireFromString("151.00")) {
		t.Errorf("Expected take profit 151.00, got %s", tp)
	}

	// SELL mirrors the signs.
	sl = m.StopLossPrice("USD_JPY", types.SideSell, entry)
	if !sl.Equal(decimal.RequireFromString("150.50")) {
		t.Errorf("Expected sell stop loss 150.50, got %s", sl)
	}

	// Non-JPY pairs use the 0.0001 pip.
	entry = decimal.RequireFromString("1.1000")
	sl = m.StopLossPrice("EUR_USD", types.SideBuy, entry)
	if !sl.Equal(decimal.RequireFromString("1.0950")) {
		t.Errorf("Expected stop loss 1.0950, got %s", sl)
	}
}

func TestConsecutiveLossHalt(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if allowed, _ := m.CheckTradeAllowed(ctx, "USD_JPY", types.SideBuy, 1, healthyAssets()); !allowed {
			t.Fatalf("Expected trade %d allowed before halt", i)
		}
		m.RecordTradeResult(ctx, -1000, false)
	}

	allowed, reason := m.CheckTradeAllowed(ctx, "USD_JPY", types.SideBuy, 1, healthyAssets())
	if allowed {
		t.Fatal("Expected trade denied after three consecutive losses")
	}
	if !strings.Contains(reason, "halted") && !strings.Contains(reason, "consecutive") {
		t.Errorf("Expected halt reason, got %q", reason)
	}
	if m.Snapshot().Level != LevelCritical {
		t.Errorf("Expected CRITICAL level while halted, got %s", m.Snapshot().Level)
	}

	// The halt survives until the explicit reset.
	m.RecordTradeResult(ctx, 500, true)
	if allowed, _ := m.CheckTradeAllowed(ctx, "USD_JPY", types.SideBuy, 1, healthyAssets()); allowed {
		t.Fatal("Expected halt to persist without explicit reset")
	}

	m.ResetHalt(ctx)
	if allowed, _ := m.CheckTradeAllowed(ctx, "USD_JPY", types.SideBuy, 1, healthyAssets()); !allowed {
		t.Fatal("Expected trade allowed after halt reset")
	}
}

func TestWinResetsLossStreak(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.RecordTradeResult(ctx, -1000, false)
	m.RecordTradeResult(ctx, -1000, false)
	m.RecordTradeResult(ctx, 2000, true)
	m.RecordTradeResult(ctx, -1000, false)

	s := m.Snapshot()
	if s.State.ConsecutiveLosses != 1 {
		t.Errorf("Expected streak 1 after win reset, got %d", s.State.ConsecutiveLosses)
	}
	if s.State.TradingHalted {
		t.Error("Did not expect halt")
	}
	if s.State.DailyLossAccumulated != 3000 {
		t.Errorf("Expected accumulated loss 3000, got %f", s.State.DailyLossAccumulated)
	}
	if s.State.DailyTradeCount != 4 {
		t.Errorf("Expected 4 trades, got %d", s.State.DailyTradeCount)
	}
}

func TestDailyTradeLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Risk.MaxDailyTrades = 2
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	m.RecordTradeResult(ctx, 100, true)
	m.RecordTradeResult(ctx, 100, true)

	allowed, reason := m.CheckTradeAllowed(ctx, "USD_JPY", types.SideBuy, 1, healthyAssets())
	if allowed {
		t.Fatal("Expected denial at daily trade limit")
	}
	if !strings.Contains(reason, "daily trade limit") {
		t.Errorf("Expected trade-limit reason, got %q", reason)
	}
}

func TestDayBoundaryResetsCountersNotStreak(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return day1 }
	m.state.LastReset = day1

	m.RecordTradeResult(ctx, -5000, false)
	m.RecordTradeResult(ctx, -5000, false)

	m.now = func() time.Time { return day1.Add(24 * time.Hour) }
	s := m.Snapshot()
	if s.State.DailyLossAccumulated != 0 || s.State.DailyTradeCount != 0 {
		t.Errorf("Expected daily counters reset, got loss=%f trades=%d",
			s.State.DailyLossAccumulated, s.State.DailyTradeCount)
	}
	if s.State.ConsecutiveLosses != 2 {
		t.Errorf("Expected loss streak to survive the day boundary, got %d", s.State.ConsecutiveLosses)
	}
}

func TestMarginRatioGate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	thin := healthyAssets()
	thin.Equity = "50000"
	thin.Margin = "100000"
	allowed, reason := m.CheckTradeAllowed(ctx, "USD_JPY", types.SideBuy, 1, thin)
	if allowed {
		t.Fatal("Expected denial at 50% margin ratio")
	}
	if !strings.Contains(reason, "margin ratio") {
		t.Errorf("Expected margin reason, got %q", reason)
	}

	// Zero margin means no open positions: always passes.
	flat := healthyAssets()
	flat.Margin = "0"
	if allowed, _ := m.CheckTradeAllowed(ctx, "USD_JPY", types.SideBuy, 1, flat); !allowed {
		t.Error("Expected zero margin to pass the gate")
	}
}

func TestShouldClosePosition(t *testing.T) {
	m := newTestManager(t)
	pos := types.Position{
		Symbol:     "USD_JPY",
		Side:       types.SideBuy,
		Size:       1,
		EntryPrice: "150.00",
	}

	if hit, reason := m.ShouldClosePosition(pos, decimal.RequireFromString("149.50")); !hit {
		t.Error("Expected stop loss hit at 149.50")
	} else if !strings.Contains(reason, "stop loss") {
		t.Errorf("Expected stop-loss reason, got %q", reason)
	}
	if hit, reason := m.ShouldClosePosition(pos, decimal.RequireFromString("151.00")); !hit {
		t.Error("Expected take profit hit at 151.00")
	} else if !strings.Contains(reason, "take profit") {
		t.Errorf("Expected take-profit reason, got %q", reason)
	}
	if hit, _ := m.ShouldClosePosition(pos, decimal.RequireFromString("150.20")); hit {
		t.Error("Did not expect a close between the levels")
	}

	short := pos
	short.Side = types.SideSell
	if hit, _ := m.ShouldClosePosition(short, decimal.RequireFromString("150.50")); !hit {
		t.Error("Expected short stop loss hit at 150.50")
	}
	if hit, _ := m.ShouldClosePosition(short, decimal.RequireFromString("149.00")); !hit {
		t.Error("Expected short take profit hit at 149.00")
	}
}

func TestCheckPositionAge(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	if expired, _ := m.CheckPositionAge(now.Add(-23 * time.Hour)); expired {
		t.Error("Did not expect expiry under the limit")
	}
	expired, reason := m.CheckPositionAge(now.Add(-25 * time.Hour))
	if !expired {
		t.Fatal("Expected expiry past 24h")
	}
	if !strings.Contains(reason, "held") {
		t.Errorf("Expected age reason, got %q", reason)
	}
}

func TestRiskLevels(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if got := m.Snapshot().Level; got != LevelLow {
		t.Errorf("Expected LOW on a fresh day, got %s", got)
	}

	// 5 of 10 daily trades puts the worst fraction at 0.5.
	for i := 0; i < 5; i++ {
		m.RecordTradeResult(ctx, 100, true)
	}
	if got := m.Snapshot().Level; got != LevelMedium {
		t.Errorf("Expected MEDIUM at half the trade budget, got %s", got)
	}

	for i := 0; i < 3; i++ {
		m.RecordTradeResult(ctx, 100, true)
	}
	if got := m.Snapshot().Level; got != LevelHigh {
		t.Errorf("Expected HIGH at 80%% of the trade budget, got %s", got)
	}
}
