package state

import (
	"context"
	"database/sql"

	dbutil "github.com/llehouerou/scrobbled/internal/db"
)

const currentSchemaVersion = 1

func initSchema(ctx context.Context, db *sql.DB) error {
	return dbutil.WithTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY
			);

			CREATE TABLE IF NOT EXISTS lastfm_session (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				username TEXT,
				session_key TEXT NOT NULL,
				linked_at INTEGER
			);
		`)
		if err != nil {
			return err
		}

		// Set initial version if not exists
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO schema_version (version) VALUES (?)
		`, currentSchemaVersion)
		return err
	})
}
