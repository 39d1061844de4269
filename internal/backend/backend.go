// Package backend fans playback events out to the reporting destinations.
package backend

import (
	"context"
	"time"

	"github.com/llehouerou/scrobbled/internal/enrich"
	"github.com/llehouerou/scrobbled/internal/listened"
	"github.com/llehouerou/scrobbled/internal/playback"
)

// Context is what a destination receives for one event. Listened may be
// locked briefly but never across I/O.
type Context[T any] struct {
	Track     playback.Track
	Snapshot  playback.Snapshot
	Listened  *listened.Shared
	StartedAt time.Time
	Data      T
}

// Started is the context of a track-started event.
type Started = Context[enrich.Bundle]

// Event is the context of track-ended and progress events.
type Event = Context[struct{}]

// Destination is one reporting target.
type Destination interface {
	Name() string
	// Solicit returns the enrichment the destination wants for track-started.
	Solicit() enrich.Kinds
	TrackStarted(ctx context.Context, c Started) error
	TrackEnded(ctx context.Context, c Event) error
	Progress(ctx context.Context, c Event) error
	// Eligible decides whether TrackEnded should be called for c.
	Eligible(c Event) bool
}

// PresenceClearer is implemented by destinations that show an ongoing
// "now playing" indicator.
type PresenceClearer interface {
	ClearPresence(ctx context.Context) error
}

const (
	minEligibleDuration = 30 * time.Second
	maxRequiredListen   = 4 * time.Minute
)

// Eligible reports whether heard time qualifies a track of duration as a
// play. Tracks shorter than 30s never qualify; otherwise half the track or
// four minutes, whichever comes first. An unknown duration never qualifies.
func Eligible(duration, heard time.Duration) bool {
	if duration < minEligibleDuration {
		return false
	}
	return heard >= min(maxRequiredListen, duration/2)
}
