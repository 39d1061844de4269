// Package listened tracks how much of a track has actually been heard.
package listened

import (
	"sync"
	"time"
)

// SeekThreshold is the smallest gap between the expected and the reported
// position that counts as a seek rather than clock drift.
const SeekThreshold = 2 * time.Second

type span struct {
	anchor   time.Time
	position time.Duration
}

// Ledger correlates wall-clock time with heard playback time for a single
// track. At most one span is open at a time.
type Ledger struct {
	current     *span
	accumulated time.Duration
}

// New returns an empty ledger.
func New() Ledger {
	return Ledger{}
}

// NewWithCurrent returns a ledger with a span opened at position.
func NewWithCurrent(position time.Duration) Ledger {
	var l Ledger
	l.SetNewCurrent(position)
	return l
}

// SetNewCurrent opens a span anchored now at position.
// It panics if a span is already open.
func (l *Ledger) SetNewCurrent(position time.Duration) {
	if l.current != nil {
		panic("listened: span already open")
	}
	l.current = &span{anchor: time.Now(), position: position}
}

// FlushCurrent closes the open span, if any, and adds its duration to the
// accumulated total.
func (l *Ledger) FlushCurrent() {
	if l.current == nil {
		return
	}
	l.accumulated += elapsed(l.current.anchor)
	l.current = nil
}

// HasCurrent reports whether a span is open.
func (l *Ledger) HasCurrent() bool {
	return l.current != nil
}

// ExpectedPosition returns where playback should be if it has run
// uninterrupted since the span was opened.
func (l *Ledger) ExpectedPosition() (time.Duration, bool) {
	if l.current == nil {
		return 0, false
	}
	return l.current.position + elapsed(l.current.anchor), true
}

// IsSeek reports whether reported is far enough from the expected position
// to be a seek. It is false when no span is open.
func (l *Ledger) IsSeek(reported time.Duration) bool {
	expected, ok := l.ExpectedPosition()
	if !ok {
		return false
	}
	diff := expected - reported
	if diff < 0 {
		diff = -diff
	}
	return diff >= SeekThreshold
}

// TotalHeard returns the accumulated time plus the open span.
func (l *Ledger) TotalHeard() time.Duration {
	total := l.accumulated
	if l.current != nil {
		total += elapsed(l.current.anchor)
	}
	return total
}

// Accumulated returns the time folded in from closed spans only.
func (l *Ledger) Accumulated() time.Duration {
	return l.accumulated
}

func elapsed(since time.Time) time.Duration {
	d := time.Since(since)
	if d < 0 {
		return 0
	}
	return d
}

// Snapshot is a point-in-time copy of a ledger.
type Snapshot struct {
	Heard    time.Duration
	Expected time.Duration
	Open     bool
}

// Shared is a lock-protected ledger handle. Callers must not hold the lock
// across I/O.
type Shared struct {
	mu     sync.Mutex
	ledger Ledger
}

// NewShared wraps l.
func NewShared(l Ledger) *Shared {
	return &Shared{ledger: l}
}

// With runs fn with the lock held.
func (s *Shared) With(fn func(*Ledger)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.ledger)
}

// TotalHeard returns the heard time under the lock.
func (s *Shared) TotalHeard() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.TotalHeard()
}

// Snapshot copies the ledger state under the lock.
func (s *Shared) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	expected, open := s.ledger.ExpectedPosition()
	return Snapshot{
		Heard:    s.ledger.TotalHeard(),
		Expected: expected,
		Open:     open,
	}
}
