package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect selects the SQL variations between the supported stores
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

// ForUpdate is the row-lock suffix for SELECTs made inside a transaction
func (d Dialect) ForUpdate() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// LockKey takes a transaction-scoped exclusive lock on key. On SQLite the
// single write connection already serialises transactions.
func (d Dialect) LockKey(ctx context.Context, tx *sql.Tx, key string) error {
	if d != Postgres {
		return nil
	}
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

// NullString maps "" to SQL NULL
func NullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
