// Package tracker turns player poll samples into ledger updates and
// destination events.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/llehouerou/scrobbled/internal/backend"
	"github.com/llehouerou/scrobbled/internal/enrich"
	"github.com/llehouerou/scrobbled/internal/listened"
	"github.com/llehouerou/scrobbled/internal/playback"
)

const (
	// PauseThreshold is the number of consecutive paused samples needed
	// before playback counts as paused. Players report short pauses while
	// buffering.
	PauseThreshold = 3

	// DefaultInterval is the delay between two polls.
	DefaultInterval = time.Second
)

// ErrUnsupportedState is returned for fast-forward and rewind samples.
var ErrUnsupportedState = errors.New("unsupported player state")

// Enricher fetches extra data for a new track.
type Enricher interface {
	Solicit(ctx context.Context, kinds enrich.Kinds, track playback.Track) enrich.Bundle
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithInterval sets the delay between polls in Run.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithTerminating shares the shutdown flag. Once set, Run stops at the next
// cycle boundary and decode failures are no longer reported.
func WithTerminating(flag *atomic.Bool) Option {
	return func(t *Tracker) {
		t.terminating = flag
	}
}

// Tracker is the playback state machine. Poll must not be called
// concurrently.
type Tracker struct {
	source      playback.Source
	dispatcher  *backend.Dispatcher
	enricher    Enricher
	logger      *slog.Logger
	interval    time.Duration
	terminating *atomic.Bool

	track     *playback.Track
	startedAt time.Time
	ledger    *listened.Shared
	pauses    int
	sampled   bool
}

// New creates a Tracker.
func New(source playback.Source, dispatcher *backend.Dispatcher, enricher Enricher, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		source:      source,
		dispatcher:  dispatcher,
		enricher:    enricher,
		logger:      logger,
		interval:    DefaultInterval,
		terminating: &atomic.Bool{},
		ledger:      listened.NewShared(listened.New()),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run polls until ctx is done or the terminating flag is set. A cycle in
// progress when ctx is canceled runs to completion.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	pollCtx := context.WithoutCancel(ctx)
	for !t.terminating.Load() {
		if err := t.Poll(pollCtx); err != nil {
			t.logger.Warn("poll", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// Poll processes one sample.
func (t *Tracker) Poll(ctx context.Context) error {
	snap, err := t.source.ApplicationData(ctx)
	if err != nil {
		t.pollFailed("application data", err)
		return nil
	}
	first := !t.sampled
	t.sampled = true

	if snap.State != playback.StatePaused {
		t.pauses = 0
	}

	switch snap.State {
	case playback.StateStopped:
		t.stopped(ctx, snap)
	case playback.StatePaused:
		t.paused(ctx)
	case playback.StatePlaying:
		t.playing(ctx, snap, first)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedState, snap.State)
	}
	return nil
}

func (t *Tracker) pollFailed(what string, err error) {
	switch {
	case errors.Is(err, playback.ErrNoData), errors.Is(err, playback.ErrNotPlaying):
		return
	case errors.Is(err, playback.ErrDeserialization) && t.terminating.Load():
		// the player connection is torn down while we exit
		return
	}
	t.logger.Error("poll failed", "what", what, "err", err)
}

func (t *Tracker) stopped(ctx context.Context, snap playback.Snapshot) {
	t.dispatcher.ClearPresence(ctx)
	t.ledger.With(func(l *listened.Ledger) { l.FlushCurrent() })

	if t.track == nil {
		return
	}
	ended := t.endedEvent(snap)
	t.track = nil
	t.ledger = listened.NewShared(listened.New())
	t.dispatcher.TrackEnded(ctx, ended)
}

func (t *Tracker) paused(ctx context.Context) {
	t.pauses++
	if t.pauses < PauseThreshold {
		return
	}
	t.dispatcher.ClearPresence(ctx)
	t.ledger.With(func(l *listened.Ledger) { l.FlushCurrent() })
}

func (t *Tracker) playing(ctx context.Context, snap playback.Snapshot, first bool) {
	track, err := t.source.CurrentTrack(ctx)
	if err != nil {
		t.pollFailed("current track", err)
		return
	}

	if t.track != nil && t.track.Same(track) {
		t.sameTrack(ctx, track, snap)
		return
	}
	t.newTrack(ctx, track, snap, first)
}

func (t *Tracker) sameTrack(ctx context.Context, track playback.Track, snap playback.Snapshot) {
	if !snap.HasPosition {
		t.logger.Debug("playing sample without position", "track", track.Title)
		return
	}

	seeked := false
	t.ledger.With(func(l *listened.Ledger) {
		if !l.HasCurrent() {
			l.SetNewCurrent(snap.Position)
			return
		}
		if l.IsSeek(snap.Position) {
			l.FlushCurrent()
			l.SetNewCurrent(snap.Position)
			seeked = true
		}
	})
	if !seeked {
		return
	}

	t.logger.Debug("seek", "track", track.Title, "position", snap.Position)
	t.dispatcher.Progress(ctx, backend.Event{
		Track:     track,
		Snapshot:  snap,
		Listened:  t.ledger,
		StartedAt: t.startedAt,
	})
}

func (t *Tracker) newTrack(ctx context.Context, track playback.Track, snap playback.Snapshot, first bool) {
	t.logger.Info("new track", "artist", track.Artist, "title", track.Title, "album", track.Album)

	kinds := t.dispatcher.Solicitations()

	var (
		bundle enrich.Bundle
		g      errgroup.Group
	)
	g.Go(func() error {
		bundle = t.enricher.Solicit(ctx, kinds, track)
		return nil
	})
	if t.track != nil {
		t.ledger.With(func(l *listened.Ledger) { l.FlushCurrent() })
		ended := t.endedEvent(snap)
		g.Go(func() error {
			t.dispatcher.TrackEnded(ctx, ended)
			return nil
		})
	}
	_ = g.Wait()

	if track.Duration == 0 {
		track.Duration = bundle.Duration
	}

	// Position reports right after a track change lag behind, so only the
	// very first sample of this process trusts the reported position.
	start := track.Start
	if first && snap.HasPosition {
		start = snap.Position
	}

	now := time.Now()
	t.ledger = listened.NewShared(listened.NewWithCurrent(start))
	t.track = &track
	t.startedAt = now.Add(-max(0, start-track.Start))

	t.dispatcher.TrackStarted(ctx, backend.Started{
		Track:     track,
		Snapshot:  snap,
		Listened:  t.ledger,
		StartedAt: t.startedAt,
		Data:      bundle,
	})
}

func (t *Tracker) endedEvent(snap playback.Snapshot) backend.Event {
	return backend.Event{
		Track:     *t.track,
		Snapshot:  snap,
		Listened:  t.ledger,
		StartedAt: t.startedAt,
	}
}

// Current returns the tracked track, if any.
func (t *Tracker) Current() (playback.Track, bool) {
	if t.track == nil {
		return playback.Track{}, false
	}
	return *t.track, true
}

// Ledger returns the handle of the current ledger.
func (t *Tracker) Ledger() *listened.Shared {
	return t.ledger
}
