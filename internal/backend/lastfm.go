package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/llehouerou/scrobbled/internal/enrich"
	"github.com/llehouerou/scrobbled/internal/lastfm"
	"github.com/llehouerou/scrobbled/internal/playback"
)

// albumSuffixes are store-added decorations stripped before submission.
var albumSuffixes = []string{" - Single", " - EP"}

// ErrIncompleteTrack is returned when a track lacks an artist or a title.
var ErrIncompleteTrack = errors.New("track has no artist or title")

// LastFM scrobbles to Last.fm.
type LastFM struct {
	client *lastfm.AuthorizedClient
	logger *slog.Logger

	mu   sync.Mutex
	mbid map[string]string // persistent id -> recording id of the current track
}

// NewLastFM creates the Last.fm destination. Only an authorized client can
// be used, so an unauthenticated setup cannot reach this point.
func NewLastFM(logger *slog.Logger, client *lastfm.AuthorizedClient) *LastFM {
	return &LastFM{client: client, logger: logger, mbid: map[string]string{}}
}

func (l *LastFM) Name() string { return "last.fm" }

func (l *LastFM) Solicit() enrich.Kinds { return enrich.KindMBID }

func (l *LastFM) TrackStarted(ctx context.Context, c Started) error {
	l.remember(c.Track.PersistentID, c.Data.MBID)

	info, err := l.trackInfo(c.Track)
	if err != nil {
		l.logger.Warn("skipping now playing", "err", err)
		return nil
	}
	resp, err := l.client.UpdateNowPlaying(ctx, info)
	if err != nil {
		return l.explain(err)
	}
	if resp.Ignored != lastfm.NotIgnored {
		l.logger.Warn("now playing ignored", "reason", resp.Ignored, "message", resp.IgnoredMessage)
	}
	return nil
}

func (l *LastFM) TrackEnded(ctx context.Context, c Event) error {
	defer l.forget(c.Track.PersistentID)

	info, err := l.trackInfo(c.Track)
	if err != nil {
		l.logger.Warn("skipping scrobble", "err", err)
		return nil
	}
	resp, err := l.client.Scrobble(ctx, []lastfm.Scrobble{{
		TrackInfo: info,
		Timestamp: c.StartedAt,
	}})
	if err != nil {
		return l.explain(err)
	}
	for _, r := range resp.Results {
		if r.Ignored != lastfm.NotIgnored {
			l.logger.Warn("scrobble ignored", "track", info.Track, "reason", r.Ignored, "message", r.IgnoredMessage)
		}
	}
	l.logger.Info("scrobbled", "artist", info.Artist, "track", info.Track, "accepted", resp.Accepted)
	return nil
}

// Progress is a no-op: Last.fm has no notion of playback position.
func (l *LastFM) Progress(context.Context, Event) error { return nil }

func (l *LastFM) Eligible(c Event) bool {
	return Eligible(c.Track.Duration, c.Listened.TotalHeard())
}

func (l *LastFM) trackInfo(t playback.Track) (lastfm.TrackInfo, error) {
	if t.Artist == "" || t.Title == "" {
		return lastfm.TrackInfo{}, fmt.Errorf("%w: %q", ErrIncompleteTrack, t.PersistentID)
	}
	info := lastfm.TrackInfo{
		Artist:      t.Artist,
		Track:       t.Title,
		Album:       cleanAlbum(t.Album),
		AlbumArtist: t.AlbumArtist,
		Duration:    t.Duration,
		TrackNumber: t.TrackNumber,
	}
	l.mu.Lock()
	if id := l.mbid[t.PersistentID]; id != "" {
		if _, err := uuid.Parse(id); err == nil {
			info.MBID = id
		}
	}
	l.mu.Unlock()
	return info, nil
}

func (l *LastFM) remember(id, mbid string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.mbid)
	if mbid != "" {
		l.mbid[id] = mbid
	}
}

func (l *LastFM) forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.mbid, id)
}

func (l *LastFM) explain(err error) error {
	if cause, ok := lastfm.CauseOf(err); ok && cause == lastfm.CauseInvalidSessionKey {
		return fmt.Errorf("%w (run `scrobbled auth` to sign in again)", err)
	}
	return err
}

func cleanAlbum(album string) string {
	for _, suffix := range albumSuffixes {
		album = strings.TrimSuffix(album, suffix)
	}
	return album
}
