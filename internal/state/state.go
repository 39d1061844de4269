package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName    = "scrobbled"
	dbFileName = "scrobbled.db"
)

// Manager owns the state database.
type Manager struct {
	db   *sql.DB
	path string
}

// Open opens the database in the XDG data directory.
func Open(ctx context.Context) (*Manager, error) {
	dbPath, err := Path()
	if err != nil {
		return nil, err
	}
	return OpenPath(ctx, dbPath)
}

// OpenPath opens or creates the database at path.
func OpenPath(ctx context.Context, path string) (*Manager, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure state db: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init state schema: %w", err)
	}

	return &Manager{db: db, path: path}, nil
}

// Path returns the default database location.
func Path() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}

// Location returns the file the manager was opened on.
func (m *Manager) Location() string {
	return m.path
}

func (m *Manager) Close() error {
	return m.db.Close()
}
