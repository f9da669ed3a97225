package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"fx-trading-bot/internal/types"
)

// timeFormat keeps stored instants lexically sortable.
const timeFormat = time.RFC3339

// Store implements the signal/trade writers and the news reader on one
// SQLite handle. All derived values are converted to plain native
// types before they cross into SQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveSignal persists one emitted signal keyed by its document ID.
// Re-saving the same ID overwrites; the signal itself is immutable so
// the overwrite is always byte-equivalent.
func (s *Store) SaveSignal(ctx context.Context, sig types.Signal) (string, error) {
	technical, err := json.Marshal(sig.Technical)
	if err != nil {
		return "", fmt.Errorf("encode technical: %w", err)
	}
	newsSummary, err := json.Marshal(sig.NewsSummary)
	if err != nil {
		return "", fmt.Errorf("encode news summary: %w", err)
	}

	docID := sig.DocID()
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO signals
			(doc_id, symbol, decision, confidence, created_at, rationale, rule_version, technical, news_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		docID,
		sig.Symbol,
		string(sig.Decision),
		sig.Confidence,
		sig.Timestamp.UTC().Format(timeFormat),
		sig.Rationale,
		sig.RuleVersion,
		string(technical),
		string(newsSummary),
	)
	if err != nil {
		return "", fmt.Errorf("insert signal %s: %w", docID, err)
	}
	return docID, nil
}

// SaveTradeResult appends one executor outcome.
func (s *Store) SaveTradeResult(ctx context.Context, res types.TradeResult) error {
	simulated := 0
	if res.Simulated {
		simulated = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades
			(symbol, outcome, action, size, order_id, error_kind, reason, simulated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.Symbol,
		string(res.Outcome),
		string(res.Action),
		res.Size,
		res.OrderID,
		res.ErrorKind,
		res.Reason,
		simulated,
		res.Timestamp.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert trade result for %s: %w", res.Symbol, err)
	}
	return nil
}

// RecentEvents returns news rows for symbol collected at or after
// cutoff with impact >= impactMin, newest first, capped at limit.
func (s *Store) RecentEvents(ctx context.Context, symbol string, cutoff time.Time, impactMin, limit int) ([]types.NewsEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, headline, sentiment, impact, signal, collected_at
		FROM news_events
		WHERE symbol = ? AND collected_at >= ? AND impact >= ?
		ORDER BY collected_at DESC
		LIMIT ?`,
		symbol, cutoff.UTC().Format(timeFormat), impactMin, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query news for %s: %w", symbol, err)
	}
	defer rows.Close()

	var events []types.NewsEvent
	for rows.Next() {
		var e types.NewsEvent
		var collectedAt string
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Headline, &e.Sentiment, &e.Impact, &e.Signal, &collectedAt); err != nil {
			return nil, fmt.Errorf("scan news row: %w", err)
		}
		t, err := time.Parse(timeFormat, collectedAt)
		if err != nil {
			return nil, fmt.Errorf("parse collected_at %q: %w", collectedAt, err)
		}
		e.CollectedAt = t.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// SaveNewsEvent writes one scored event. In production the external
// news pipeline owns this table; this writer exists for seeding and
// tests.
func (s *Store) SaveNewsEvent(ctx context.Context, e types.NewsEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO news_events
			(id, symbol, headline, sentiment, impact, signal, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Symbol, e.Headline, e.Sentiment, e.Impact, e.Signal,
		e.CollectedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert news event %s: %w", e.ID, err)
	}
	return nil
}
