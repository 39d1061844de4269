package state

import (
	"context"
	"database/sql"
	"errors"
	"time"

	dbutil "github.com/llehouerou/scrobbled/internal/db"
)

// LastfmSession represents a stored Last.fm session.
type LastfmSession struct {
	Username   string
	SessionKey string
	LinkedAt   time.Time
}

// GetLastfmSession returns the stored Last.fm session, or nil if not linked.
func (m *Manager) GetLastfmSession(ctx context.Context) (*LastfmSession, error) {
	var (
		username   sql.NullString
		sessionKey string
		linkedAt   sql.NullInt64
	)

	err := m.db.QueryRowContext(ctx, `
		SELECT username, session_key, linked_at FROM lastfm_session WHERE id = 1
	`).Scan(&username, &sessionKey, &linkedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil session means not linked, not an error
	}
	if err != nil {
		return nil, err
	}

	s := &LastfmSession{
		Username:   dbutil.NullStringValue(username),
		SessionKey: sessionKey,
	}
	if unix := dbutil.NullInt64Value(linkedAt); unix > 0 {
		s.LinkedAt = time.Unix(unix, 0)
	}
	return s, nil
}

// SaveLastfmSession stores the Last.fm session after successful authentication.
func (m *Manager) SaveLastfmSession(ctx context.Context, username, sessionKey string) error {
	now := time.Now().Unix()
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO lastfm_session (id, username, session_key, linked_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			session_key = excluded.session_key,
			linked_at = excluded.linked_at
	`, username, sessionKey, now)
	return err
}

// DeleteLastfmSession removes the stored Last.fm session (unlink). It
// reports whether a session existed.
func (m *Manager) DeleteLastfmSession(ctx context.Context) (bool, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM lastfm_session WHERE id = 1`)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
