// Package engine scores technical and news inputs into buy/sell/hold
// signals.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fx-trading-bot/internal/analyzer"
	"fx-trading-bot/internal/config"
	"fx-trading-bot/internal/interfaces"
	"fx-trading-bot/internal/logger"
	"fx-trading-bot/internal/news"
	"fx-trading-bot/internal/trace"
	"fx-trading-bot/internal/types"
)

const holdConfidence = 0.5

// RuleEngine fuses an IndicatorSet and a NewsSummary into a Signal
// with an auditable rationale. Rules are versioned so persisted
// signals stay attributable after a rule change.
type RuleEngine struct {
	analyzer    *analyzer.TechnicalAnalyzer
	news        *news.Reader
	store       interfaces.SignalStore // nil disables persistence
	symbols     []string
	ruleVersion string
	now         func() time.Time
}

func NewRuleEngine(a *analyzer.TechnicalAnalyzer, n *news.Reader, store interfaces.SignalStore, cfg *config.Config) *RuleEngine {
	return &RuleEngine{
		analyzer:    a,
		news:        n,
		store:       store,
		symbols:     cfg.Symbols,
		ruleVersion: cfg.Signal.RuleVersion,
		now:         time.Now,
	}
}

// scoredFactor is one triggered scoring rule; the rationale names all
// of them so the totals can be reconstructed.
type scoredFactor struct {
	name   string
	side   types.Decision // buy or sell
	points int
	detail string
}

// GenerateSignal scores one symbol.
func (e *RuleEngine) GenerateSignal(ctx context.Context, symbol string) (types.Signal, error) {
	ctx, span := trace.StartSpan(ctx, "engine.GenerateSignal")
	defer span.End()

	technical, err := e.analyzer.Analyze(ctx, symbol)
	if err != nil {
		return types.Signal{}, err
	}
	summary, err := e.news.RecentSummary(ctx, symbol)
	if err != nil {
		return types.Signal{}, err
	}
	sig := e.Evaluate(symbol, technical, summary)

	if e.store != nil {
		// Persistence is best effort: a storage fault must not cost
		// us the signal.
		if docID, err := e.store.SaveSignal(ctx, sig); err != nil {
			logger.Warn(ctx, "signal persistence failed",
				"symbol", symbol, "error", err.Error())
		} else {
			logger.Debug(ctx, "signal persisted", "doc_id", docID)
		}
	}

	logger.Decision(ctx, symbol, string(sig.Decision), sig.Confidence, sig.Rationale,
		"rule_version", sig.RuleVersion)
	return sig, nil
}

// GenerateSignals scores every configured symbol. One symbol's failure
// does not abort the rest; errors are reported per symbol in the map.
func (e *RuleEngine) GenerateSignals(ctx context.Context) ([]types.Signal, map[string]error) {
	signals := make([]types.Signal, 0, len(e.symbols))
	failures := map[string]error{}
	for _, symbol := range e.symbols {
		sig, err := e.GenerateSignal(ctx, symbol)
		if err != nil {
			logger.ErrorWithErr(ctx, "signal generation failed", err, "symbol", symbol)
			failures[symbol] = err
			continue
		}
		signals = append(signals, sig)
	}
	return signals, failures
}

// Evaluate applies the scoring table to already-computed inputs. Pure
// function of its arguments apart from the timestamp.
func (e *RuleEngine) Evaluate(symbol string, technical types.IndicatorSet, summary types.NewsSummary) types.Signal {
	factors := scoreFactors(technical, summary)

	buyScore, sellScore := 0, 0
	for _, f := range factors {
		if f.side == types.DecisionBuy {
			buyScore += f.points
		} else {
			sellScore += f.points
		}
	}

	decision := types.DecisionHold
	confidence := holdConfidence
	switch {
	case buyScore >= 4 && sellScore <= 1:
		decision = types.DecisionBuy
		confidence = min(0.3+0.15*float64(buyScore), 1.0)
	case sellScore >= 4 && buyScore <= 1:
		decision = types.DecisionSell
		confidence = min(0.3+0.15*float64(sellScore), 1.0)
	}

	return types.Signal{
		Symbol:      symbol,
		Decision:    decision,
		Confidence:  confidence,
		Timestamp:   e.now().UTC(),
		Technical:   technical,
		NewsSummary: summary,
		Rationale:   rationale(buyScore, sellScore, factors),
		RuleVersion: e.ruleVersion,
	}
}

// scoreFactors evaluates the rule table. The technical and news tiers
// are exclusive within themselves: a strong match suppresses the weak
// one on the same side.
func scoreFactors(t types.IndicatorSet, n types.NewsSummary) []scoredFactor {
	var factors []scoredFactor
	add := func(name string, side types.Decision, points int, detail string) {
		factors = append(factors, scoredFactor{name: name, side: side, points: points, detail: detail})
	}

	trendDetail := fmt.Sprintf("trend=%s momentum=%s", t.Trend, t.Momentum)
	switch {
	case t.Trend == types.TrendUp && t.Momentum == types.MomentumBullish:
		add("technical combo", types.DecisionBuy, 3, trendDetail)
	case t.Trend == types.TrendDown && t.Momentum == types.MomentumBearish:
		add("technical combo", types.DecisionSell, 3, trendDetail)
	case t.Trend == types.TrendUp:
		add("technical weak", types.DecisionBuy, 1, trendDetail)
	case t.Trend == types.TrendDown:
		add("technical weak", types.DecisionSell, 1, trendDetail)
	}

	rsiDetail := fmt.Sprintf("rsi=%.1f", t.RSI.Value)
	if t.RSI.Oversold {
		add("rsi oversold", types.DecisionBuy, 2, rsiDetail)
	} else if t.RSI.Overbought {
		add("rsi overbought", types.DecisionSell, 2, rsiDetail)
	}

	newsDetail := fmt.Sprintf("avg_sentiment=%.2f avg_impact=%.2f n=%d", n.AvgSentiment, n.AvgImpact, n.Count)
	switch {
	case n.AvgSentiment > 0.5 && n.AvgImpact >= 3:
		add("news strong", types.DecisionBuy, 3, newsDetail)
	case n.AvgSentiment < -0.5 && n.AvgImpact >= 3:
		add("news strong", types.DecisionSell, 3, newsDetail)
	case n.AvgSentiment > 0:
		add("news weak", types.DecisionBuy, 1, newsDetail)
	case n.AvgSentiment < 0:
		add("news weak", types.DecisionSell, 1, newsDetail)
	}
	return factors
}

// rationale names every triggered factor with its points and side so
// the totals are reconstructible from the string alone.
func rationale(buyScore, sellScore int, factors []scoredFactor) string {
	if len(factors) == 0 {
		return "buy 0 / sell 0: no factors triggered"
	}
	parts := make([]string, 0, len(factors))
	for _, f := range factors {
		parts = append(parts, fmt.Sprintf("%s [%s] (+%d %s)", f.name, f.detail, f.points, f.side))
	}
	return fmt.Sprintf("buy %d / sell %d: %s", buyScore, sellScore, strings.Join(parts, "; "))
}
