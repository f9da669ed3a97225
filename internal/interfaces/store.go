package interfaces

import (
	"context"
	"time"

	"fx-trading-bot/internal/types"
)

// NewsSource reads externally-produced news-sentiment records. The news
// pipeline that writes them is a separate system.
type NewsSource interface {
	// RecentEvents returns events for symbol collected at or after
	// cutoff with impact >= impactMin, newest first, at most limit.
	RecentEvents(ctx context.Context, symbol string, cutoff time.Time, impactMin, limit int) ([]types.NewsEvent, error)
}

// SignalStore persists emitted signals and trade outcomes. Write-only
// from this core's point of view; the dashboard reads it elsewhere.
type SignalStore interface {
	SaveSignal(ctx context.Context, sig types.Signal) (docID string, err error)
	SaveTradeResult(ctx context.Context, res types.TradeResult) error
}
