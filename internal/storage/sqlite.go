// Package storage persists signals and trade results to SQLite and
// reads the news-event table maintained by the external news pipeline.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	doc_id       TEXT PRIMARY KEY,
	symbol       TEXT NOT NULL,
	decision     TEXT NOT NULL,
	confidence   REAL NOT NULL,
	created_at   TEXT NOT NULL,
	rationale    TEXT NOT NULL,
	rule_version TEXT NOT NULL,
	technical    TEXT NOT NULL,
	news_summary TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_symbol_time ON signals(symbol, created_at);

CREATE TABLE IF NOT EXISTS trades (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol     TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	action     TEXT,
	size       INTEGER NOT NULL DEFAULT 0,
	order_id   TEXT,
	error_kind TEXT,
	reason     TEXT NOT NULL,
	simulated  INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol_time ON trades(symbol, created_at);

CREATE TABLE IF NOT EXISTS news_events (
	id           TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	headline     TEXT NOT NULL,
	sentiment    INTEGER NOT NULL,
	impact       INTEGER NOT NULL,
	signal       TEXT NOT NULL,
	collected_at TEXT NOT NULL,
	PRIMARY KEY (id, symbol)
);
CREATE INDEX IF NOT EXISTS idx_news_symbol_time ON news_events(symbol, collected_at);
`

// Open opens (creating if needed) the SQLite database at path with the
// pragmas a single-writer service wants: WAL for readers during
// writes, a busy timeout instead of instant SQLITE_BUSY.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite at %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
