//go:build !linux

package mpris

import (
	"context"
	"errors"

	"github.com/llehouerou/scrobbled/internal/playback"
)

// ErrUnsupported is returned by New outside Linux.
var ErrUnsupported = errors.New("mpris: player polling is only supported on linux")

// Option configures a Source.
type Option func(*Source)

// WithPlayer is a no-op outside Linux.
func WithPlayer(string) Option {
	return func(*Source) {}
}

// Source is never usable outside Linux.
type Source struct{}

// New always fails outside Linux.
func New(...Option) (*Source, error) {
	return nil, ErrUnsupported
}

// Close is a no-op outside Linux.
func (s *Source) Close() error { return nil }

// ApplicationData reports no data outside Linux.
func (s *Source) ApplicationData(context.Context) (playback.Snapshot, error) {
	return playback.Snapshot{}, playback.ErrNoData
}

// CurrentTrack reports no data outside Linux.
func (s *Source) CurrentTrack(context.Context) (playback.Track, error) {
	return playback.Track{}, playback.ErrNoData
}
