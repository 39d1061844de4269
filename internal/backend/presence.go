package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/scrobbled/internal/enrich"
	"github.com/llehouerou/scrobbled/internal/notify"
	"github.com/llehouerou/scrobbled/internal/playback"
)

// Presence shows what is playing as a desktop notification. It records
// nothing, so track-ended is never eligible.
type Presence struct {
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	id    uint32
	track playback.Track
	icon  string
}

// NewPresence creates the presence destination.
func NewPresence(logger *slog.Logger, notifier notify.Notifier) *Presence {
	return &Presence{notifier: notifier, logger: logger, now: time.Now}
}

func (p *Presence) Name() string { return "presence" }

func (p *Presence) Solicit() enrich.Kinds { return enrich.KindArtwork }

func (p *Presence) TrackStarted(_ context.Context, c Started) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.track = c.Track
	p.icon = c.Data.ArtworkPath

	var position time.Duration
	if c.Listened != nil {
		position = c.Listened.Snapshot().Expected
	}
	return p.show(position)
}

func (p *Presence) Progress(_ context.Context, c Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !c.Track.Same(p.track) {
		p.track = c.Track
		p.icon = ""
	}
	return p.show(c.Listened.Snapshot().Expected)
}

func (p *Presence) TrackEnded(context.Context, Event) error { return nil }

func (p *Presence) Eligible(Event) bool { return false }

// ClearPresence closes the notification, if one is shown.
func (p *Presence) ClearPresence(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id == 0 {
		return nil
	}
	id := p.id
	p.id = 0
	if err := p.notifier.Close(id); err != nil {
		return fmt.Errorf("clear presence: %w", err)
	}
	return nil
}

// show replaces the current notification. position is where playback is
// now, used to derive when the track started.
func (p *Presence) show(position time.Duration) error {
	now := p.now()
	started := now.Add(-position)

	id, err := p.notifier.Notify(notify.Notification{
		Title:      p.track.Title,
		Body:       presenceBody(p.track, started, now),
		Icon:       p.icon,
		ReplacesID: p.id,
		Urgency:    notify.UrgencyLow,
		Transient:  true,
	})
	if err != nil {
		return fmt.Errorf("show presence: %w", err)
	}
	p.id = id
	return nil
}

func presenceBody(t playback.Track, started, now time.Time) string {
	line := t.Artist
	if album := cleanAlbum(t.Album); album != "" {
		if line != "" {
			line += " — "
		}
		line += album
	}

	when := "started just now"
	if now.Sub(started) >= time.Second {
		when = "started " + humanize.RelTime(started, now, "ago", "from now")
	}
	if line == "" {
		return when
	}
	return line + "\n" + when
}
