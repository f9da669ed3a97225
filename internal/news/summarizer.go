// Package news validates and aggregates externally-scored news events.
// Collection and scoring happen in a separate pipeline; this side only
// reads the results.
package news

import (
	"context"
	"fmt"
	"time"

	"fx-trading-bot/internal/config"
	"fx-trading-bot/internal/interfaces"
	"fx-trading-bot/internal/logger"
	"fx-trading-bot/internal/types"
)

// ValidationError flags a stored event whose scores are outside the
// contract: sentiment in [-2, 2], impact in [1, 5].
type ValidationError struct {
	EventID string
	Field   string
	Value   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("news event %s: %s out of range: %d", e.EventID, e.Field, e.Value)
}

// ValidateEvent checks one event against the scoring contract.
func ValidateEvent(e types.NewsEvent) error {
	if e.Sentiment < -2 || e.Sentiment > 2 {
		return &ValidationError{EventID: e.ID, Field: "sentiment", Value: e.Sentiment}
	}
	if e.Impact < 1 || e.Impact > 5 {
		return &ValidationError{EventID: e.ID, Field: "impact", Value: e.Impact}
	}
	return nil
}

// Summarize validates and aggregates a window of events. A summary of
// zero events is valid and reports all-zero aggregates.
func Summarize(events []types.NewsEvent) (types.NewsSummary, error) {
	summary := types.NewsSummary{Signals: map[string]int{}}
	if len(events) == 0 {
		return summary, nil
	}

	var sentimentSum, impactSum float64
	for _, e := range events {
		if err := ValidateEvent(e); err != nil {
			return types.NewsSummary{}, err
		}
		sentimentSum += float64(e.Sentiment)
		impactSum += float64(e.Impact)
		switch {
		case e.Sentiment > 0:
			summary.BullishCount++
		case e.Sentiment < 0:
			summary.BearishCount++
		default:
			summary.NeutralCount++
		}
		summary.Signals[e.Signal]++
	}
	summary.Count = len(events)
	summary.AvgSentiment = sentimentSum / float64(len(events))
	summary.AvgImpact = impactSum / float64(len(events))
	return summary, nil
}

// Reader pulls the recent high-impact window for a symbol and
// aggregates it.
type Reader struct {
	source        interfaces.NewsSource
	lookbackHours int
	impactMin     int
	maxRecords    int
	now           func() time.Time
}

func NewReader(source interfaces.NewsSource, cfg *config.Config) *Reader {
	return &Reader{
		source:        source,
		lookbackHours: cfg.Signal.NewsLookbackHours,
		impactMin:     cfg.Signal.NewsImpactMin,
		maxRecords:    cfg.Signal.NewsMaxRecords,
		now:           time.Now,
	}
}

// RecentSummary fetches and aggregates the news window for symbol. A
// missing source or empty window degrades to a zero summary; the rule
// engine then scores on technicals alone.
func (r *Reader) RecentSummary(ctx context.Context, symbol string) (types.NewsSummary, error) {
	if r.source == nil {
		return types.NewsSummary{Signals: map[string]int{}}, nil
	}
	cutoff := r.now().UTC().Add(-time.Duration(r.lookbackHours) * time.Hour)
	events, err := r.source.RecentEvents(ctx, symbol, cutoff, r.impactMin, r.maxRecords)
	if err != nil {
		return types.NewsSummary{}, fmt.Errorf("fetch news for %s: %w", symbol, err)
	}
	summary, err := Summarize(events)
	if err != nil {
		return types.NewsSummary{}, err
	}
	logger.Debug(ctx, "news window summarized",
		"symbol", symbol,
		"count", summary.Count,
		"avg_sentiment", summary.AvgSentiment,
		"avg_impact", summary.AvgImpact)
	return summary, nil
}
