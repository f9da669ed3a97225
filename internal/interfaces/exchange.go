package interfaces

import (
	"context"
	"time"

	"fx-trading-bot/internal/types"
)

// Exchange is the full trading capability surface. Two implementations
// exist: the live REST transport and the network-free simulator; the
// caller picks one at construction time and never branches on mode.
type Exchange interface {
	MarketData
	Trader
}

// MarketData covers the public (unauthenticated) endpoints.
type MarketData interface {
	// Candles returns one day's bars for symbol at interval.
	Candles(ctx context.Context, symbol, interval string, date time.Time) ([]types.Candle, error)
	// CandleRange merges the last `days` daily buckets, ascending by
	// open time. A single failed day is skipped, not fatal.
	CandleRange(ctx context.Context, symbol, interval string, days int) ([]types.Candle, error)
}

// Trader covers the private (authenticated) endpoints.
type Trader interface {
	AccountAssets(ctx context.Context) (types.AccountAssets, error)
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	Orders(ctx context.Context, symbol, orderID string) ([]types.Order, error)
	Positions(ctx context.Context, symbol string) ([]types.Position, error)
	ClosePosition(ctx context.Context, req types.CloseRequest) (types.OrderResult, error)
	CloseAllPositions(ctx context.Context, symbol string, side types.Side) (types.OrderResult, error)
}
