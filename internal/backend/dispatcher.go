package backend

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/llehouerou/scrobbled/internal/enrich"
)

// Dispatcher holds the enabled destinations and fans events out to them
// concurrently. A failing destination is logged and never affects the
// others; dispatch calls return once every destination has finished.
type Dispatcher struct {
	logger *slog.Logger
	dests  []Destination
}

// NewDispatcher creates a dispatcher. Nil destinations are disabled ones
// and are skipped.
func NewDispatcher(logger *slog.Logger, dests ...Destination) *Dispatcher {
	d := &Dispatcher{logger: logger}
	for _, dest := range dests {
		if dest != nil {
			d.dests = append(d.dests, dest)
		}
	}
	return d
}

// Destinations returns the enabled destinations.
func (d *Dispatcher) Destinations() []Destination {
	return append([]Destination(nil), d.dests...)
}

// Solicitations returns the union of what the destinations want.
func (d *Dispatcher) Solicitations() enrich.Kinds {
	var kinds enrich.Kinds
	for _, dest := range d.dests {
		kinds |= dest.Solicit()
	}
	return kinds
}

// TrackStarted reports a new track.
func (d *Dispatcher) TrackStarted(ctx context.Context, c Started) {
	d.fanOut("track started", func(dest Destination) error {
		return dest.TrackStarted(ctx, c)
	})
}

// TrackEnded reports a finished track to every destination for which it is
// eligible.
func (d *Dispatcher) TrackEnded(ctx context.Context, c Event) {
	d.fanOut("track ended", func(dest Destination) error {
		if !dest.Eligible(c) {
			d.logger.Debug("track not eligible", "destination", dest.Name(), "title", c.Track.Title)
			return nil
		}
		return dest.TrackEnded(ctx, c)
	})
}

// Progress reports a position correction after a seek.
func (d *Dispatcher) Progress(ctx context.Context, c Event) {
	d.fanOut("progress", func(dest Destination) error {
		return dest.Progress(ctx, c)
	})
}

// ClearPresence clears any "now playing" indicator.
func (d *Dispatcher) ClearPresence(ctx context.Context) {
	d.fanOut("clear presence", func(dest Destination) error {
		pc, ok := dest.(PresenceClearer)
		if !ok {
			return nil
		}
		return pc.ClearPresence(ctx)
	})
}

func (d *Dispatcher) fanOut(event string, fn func(Destination) error) {
	var g errgroup.Group
	for _, dest := range d.dests {
		g.Go(func() error {
			if err := fn(dest); err != nil {
				d.logger.Error("dispatch failed", "event", event, "destination", dest.Name(), "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
