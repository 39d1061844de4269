// internal/state/mock.go
package state

import (
	"context"
	"time"
)

// Mock is a test double for Manager.
type Mock struct {
	session *LastfmSession
	closed  bool
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) GetLastfmSession(context.Context) (*LastfmSession, error) {
	if m.session == nil {
		return nil, nil //nolint:nilnil // mirrors Manager
	}
	s := *m.session
	return &s, nil
}

func (m *Mock) SaveLastfmSession(_ context.Context, username, sessionKey string) error {
	m.session = &LastfmSession{Username: username, SessionKey: sessionKey, LinkedAt: time.Now()}
	return nil
}

func (m *Mock) DeleteLastfmSession(context.Context) (bool, error) {
	existed := m.session != nil
	m.session = nil
	return existed, nil
}

func (m *Mock) Close() error {
	m.closed = true
	return nil
}

// Test helpers

func (m *Mock) IsClosed() bool { return m.closed }

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
