package db

import (
	"context"
	"database/sql"
)

// WithTx executes fn within a transaction.
// It handles Begin, Rollback on error, and Commit on success.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// NullInt64Value returns the int64 value or 0 if not valid.
func NullInt64Value(n sql.NullInt64) int64 {
	if !n.Valid {
		return 0
	}
	return n.Int64
}

// NullStringValue returns the string value or empty string if not valid.
func NullStringValue(n sql.NullString) string {
	if !n.Valid {
		return ""
	}
	return n.String
}
