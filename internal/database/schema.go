package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// schema is written once with placeholders for the column types that differ
// between dialects: {{TS}} timestamps, {{JSON}} metadata documents.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		version INTEGER NOT NULL DEFAULT 1,
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		counterparty_id TEXT,
		amount BIGINT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		external_reference TEXT,
		reverses_entry_id TEXT UNIQUE,
		metadata {{JSON}},
		created_at {{TS}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries (account_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_external_ref ON ledger_entries (external_reference)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		requested_amount BIGINT NOT NULL CHECK (requested_amount > 0),
		external_amount TEXT NOT NULL,
		external_currency TEXT NOT NULL,
		external_reference TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		hold_entry_id TEXT,
		settlement_entry_id TEXT,
		metadata {{JSON}},
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL,
		finalized_at {{TS}}
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_account ON orders (account_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS webhook_events (
		id TEXT PRIMARY KEY,
		provider_event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		external_reference TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL DEFAULT '',
		created_at {{TS}} NOT NULL,
		processed_at {{TS}}
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_events_status ON webhook_events (status, created_at)`,
}

// Statements returns the DDL for the dialect
func (d Dialect) Statements() []string {
	ts, js := "TIMESTAMPTZ", "JSONB"
	if d == SQLite {
		ts, js = "TIMESTAMP", "TEXT"
	}
	out := make([]string, 0, len(schema))
	for _, stmt := range schema {
		stmt = strings.ReplaceAll(stmt, "{{TS}}", ts)
		stmt = strings.ReplaceAll(stmt, "{{JSON}}", js)
		out = append(out, stmt)
	}
	return out
}

// Migrate creates the ledger tables if they do not exist
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	for i, stmt := range dialect.Statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	log.Printf("[DATABASE] schema up to date (%s)", dialect)
	return nil
}
