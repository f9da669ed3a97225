package engine

import (
	"strings"
	"testing"
	"time"

	"fx-trading-bot/internal/config"
	"fx-trading-bot/internal/types"
)

func testEngine() *RuleEngine {
	e := NewRuleEngine(nil, nil, nil, config.Default())
	e.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return e
}

func bullishTechnical() types.IndicatorSet {
	return types.IndicatorSet{
		Symbol:   "USD_JPY",
		Trend:    types.TrendUp,
		Momentum: types.MomentumBullish,
		RSI:      types.RSIResult{Value: 55},
		MACD:     types.MACDResult{Histogram: 0.02},
	}
}

func TestEvaluateStrongBuy(t *testing.T) {
	// Technical combo (+3) and strong news (+3): buyScore 6, sellScore 0.
	news := types.NewsSummary{Count: 3, AvgSentiment: 0.8, AvgImpact: 4.5}
	sig := testEngine().Evaluate("USD_JPY", bullishTechnical(), news)

	if sig.Decision != types.DecisionBuy {
		t.Fatalf("Expected buy, got %s", sig.Decision)
	}
	if sig.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %f", sig.Confidence)
	}
	if !strings.Contains(sig.Rationale, "buy 6 / sell 0") {
		t.Errorf("Expected score totals in rationale, got %q", sig.Rationale)
	}
}

func TestEvaluateStrongSellMirror(t *testing.T) {
	technical := types.IndicatorSet{
		Symbol:   "USD_JPY",
		Trend:    types.TrendDown,
		Momentum: types.MomentumBearish,
		RSI:      types.RSIResult{Value: 45},
		MACD:     types.MACDResult{Histogram: -0.02},
	}
	news := types.NewsSummary{Count: 2, AvgSentiment: -0.8, AvgImpact: 4}
	sig := testEngine().Evaluate("USD_JPY", technical, news)

	if sig.Decision != types.DecisionSell {
		t.Fatalf("Expected sell, got %s", sig.Decision)
	}
	if sig.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %f", sig.Confidence)
	}
}

func TestEvaluateTieHolds(t *testing.T) {
	// Weak trend up (+1 buy) vs weak negative news (+1 sell).
	technical := types.IndicatorSet{
		Trend:    types.TrendUp,
		Momentum: types.MomentumNeutral,
		RSI:      types.RSIResult{Value: 50},
	}
	news := types.NewsSummary{Count: 1, AvgSentiment: -0.3, AvgImpact: 2}
	sig := testEngine().Evaluate("USD_JPY", technical, news)

	if sig.Decision != types.DecisionHold {
		t.Fatalf("Expected hold on tie, got %s", sig.Decision)
	}
	if sig.Confidence != 0.5 {
		t.Errorf("Expected hold confidence 0.5, got %f", sig.Confidence)
	}
}

func TestEvaluateZeroNewsNeverTrades(t *testing.T) {
	// Without news, the best a weak technical side can reach is 1
	// point, which never crosses the decision threshold.
	technical := types.IndicatorSet{
		Trend:    types.TrendUp,
		Momentum: types.MomentumNeutral,
		RSI:      types.RSIResult{Value: 50},
	}
	sig := testEngine().Evaluate("USD_JPY", technical, types.NewsSummary{})

	if sig.Decision != types.DecisionHold {
		t.Fatalf("Expected hold with zero news, got %s", sig.Decision)
	}
	if sig.Confidence != 0.5 {
		t.Errorf("Expected confidence 0.5, got %f", sig.Confidence)
	}
}

func TestEvaluateBuyScoreFour(t *testing.T) {
	// Combo (+3) plus weak positive news (+1): confidence 0.3 + 0.6.
	news := types.NewsSummary{Count: 1, AvgSentiment: 0.3, AvgImpact: 2}
	sig := testEngine().Evaluate("USD_JPY", bullishTechnical(), news)

	if sig.Decision != types.DecisionBuy {
		t.Fatalf("Expected buy, got %s", sig.Decision)
	}
	if sig.Confidence < 0.899 || sig.Confidence > 0.901 {
		t.Errorf("Expected confidence 0.90, got %f", sig.Confidence)
	}
}

func TestEvaluateOversoldAddsBuyPoints(t *testing.T) {
	technical := types.IndicatorSet{
		Trend:    types.TrendUp,
		Momentum: types.MomentumNeutral,
		RSI:      types.RSIResult{Value: 25, Oversold: true},
	}
	// Weak trend (+1) + oversold (+2) + weak news (+1) = 4.
	news := types.NewsSummary{Count: 1, AvgSentiment: 0.4, AvgImpact: 2}
	sig := testEngine().Evaluate("USD_JPY", technical, news)

	if sig.Decision != types.DecisionBuy {
		t.Fatalf("Expected buy at score 4, got %s (%s)", sig.Decision, sig.Rationale)
	}
}

func TestRationaleNamesEveryTriggeredFactor(t *testing.T) {
	// Combo buy (+3) against overbought sell (+2): a hold whose
	// rationale must still show both sides.
	technical := bullishTechnical()
	technical.RSI = types.RSIResult{Value: 75, Overbought: true}
	sig := testEngine().Evaluate("USD_JPY", technical, types.NewsSummary{})

	if sig.Decision != types.DecisionHold {
		t.Fatalf("Expected hold, got %s", sig.Decision)
	}
	for _, want := range []string{"technical combo", "rsi overbought", "buy 3 / sell 2"} {
		if !strings.Contains(sig.Rationale, want) {
			t.Errorf("Expected rationale to contain %q, got %q", want, sig.Rationale)
		}
	}
}

func TestSignalDocID(t *testing.T) {
	sig := testEngine().Evaluate("USD_JPY", bullishTechnical(), types.NewsSummary{})
	if got := sig.DocID(); got != "20260301_093000_USD_JPY" {
		t.Errorf("Expected doc id 20260301_093000_USD_JPY, got %s", got)
	}
}

func TestEvaluateConfidenceAlwaysInRange(t *testing.T) {
	trends := []types.Trend{types.TrendUp, types.TrendDown}
	momenta := []types.Momentum{types.MomentumBullish, types.MomentumBearish, types.MomentumNeutral}
	sentiments := []float64{-1, -0.6, -0.3, 0, 0.3, 0.6, 1}
	for _, trend := range trends {
		for _, m := range momenta {
			for _, s := range sentiments {
				technical := types.IndicatorSet{Trend: trend, Momentum: m, RSI: types.RSIResult{Value: 50}}
				news := types.NewsSummary{Count: 1, AvgSentiment: s, AvgImpact: 4}
				sig := testEngine().Evaluate("USD_JPY", technical, news)
				if sig.Confidence < 0 || sig.Confidence > 1 {
					t.Fatalf("Confidence out of range: %f (trend=%s momentum=%s sentiment=%f)",
						sig.Confidence, trend, m, s)
				}
				if sig.Decision == types.DecisionHold && sig.Confidence != 0.5 {
					t.Fatalf("Hold must carry confidence 0.5, got %f", sig.Confidence)
				}
			}
		}
	}
}
