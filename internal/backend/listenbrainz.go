package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llehouerou/scrobbled/internal/enrich"
	"github.com/llehouerou/scrobbled/internal/playback"
)

const (
	ListenBrainzURL = "https://api.listenbrainz.org"

	submitPath           = "/1/submit-listens"
	listenTypeSingle     = "single"
	listenTypePlayingNow = "playing_now"
)

var ErrListenBrainz = errors.New("listenbrainz error")

type listenPayload struct {
	ListenedAt    int64          `json:"listened_at,omitempty"`
	TrackMetadata *trackMetadata `json:"track_metadata"`
}

type additionalInfo struct {
	TrackNumber      int    `json:"tracknumber,omitempty"`
	RecordingMBID    string `json:"recording_mbid,omitempty"`
	DurationMS       int64  `json:"duration_ms,omitempty"`
	SubmissionClient string `json:"submission_client,omitempty"`
	ReleaseArtist    string `json:"release_artist,omitempty"`
}

type trackMetadata struct {
	AdditionalInfo *additionalInfo `json:"additional_info,omitempty"`
	ArtistName     string          `json:"artist_name,omitempty"`
	TrackName      string          `json:"track_name,omitempty"`
	ReleaseName    string          `json:"release_name,omitempty"`
}

type submission struct {
	ListenType string           `json:"listen_type,omitempty"`
	Payload    []*listenPayload `json:"payload"`
}

// ListenBrainz submits listens to a ListenBrainz compatible server.
type ListenBrainz struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger

	mu   sync.Mutex
	mbid map[string]string
}

// NewListenBrainz creates the ListenBrainz destination. An empty baseURL
// means the public server.
func NewListenBrainz(logger *slog.Logger, baseURL, token string) *ListenBrainz {
	if baseURL == "" {
		baseURL = ListenBrainzURL
	}
	return &ListenBrainz{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger,
		mbid:       map[string]string{},
	}
}

func (l *ListenBrainz) Name() string { return "listenbrainz" }

func (l *ListenBrainz) Solicit() enrich.Kinds { return enrich.KindMBID }

func (l *ListenBrainz) TrackStarted(ctx context.Context, c Started) error {
	l.mu.Lock()
	clear(l.mbid)
	if c.Data.MBID != "" {
		l.mbid[c.Track.PersistentID] = c.Data.MBID
	}
	l.mu.Unlock()

	if c.Track.Artist == "" || c.Track.Title == "" {
		return nil
	}
	return l.submit(ctx, listenTypePlayingNow, l.payload(c.Track, time.Time{}))
}

func (l *ListenBrainz) TrackEnded(ctx context.Context, c Event) error {
	defer l.forget(c.Track.PersistentID)
	if c.Track.Artist == "" || c.Track.Title == "" {
		l.logger.Warn("skipping listen", "err", ErrIncompleteTrack)
		return nil
	}
	return l.submit(ctx, listenTypeSingle, l.payload(c.Track, c.StartedAt))
}

func (l *ListenBrainz) Progress(context.Context, Event) error { return nil }

func (l *ListenBrainz) Eligible(c Event) bool {
	return Eligible(c.Track.Duration, c.Listened.TotalHeard())
}

func (l *ListenBrainz) forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.mbid, id)
}

func (l *ListenBrainz) payload(t playback.Track, listenedAt time.Time) *listenPayload {
	// make sure we provide a valid uuid, since tags may carry a bad mbid
	l.mu.Lock()
	mbid := l.mbid[t.PersistentID]
	l.mu.Unlock()
	if _, err := uuid.Parse(mbid); err != nil {
		mbid = ""
	}

	p := &listenPayload{
		TrackMetadata: &trackMetadata{
			ArtistName:  t.Artist,
			TrackName:   t.Title,
			ReleaseName: cleanAlbum(t.Album),
			AdditionalInfo: &additionalInfo{
				TrackNumber:      t.TrackNumber,
				RecordingMBID:    mbid,
				DurationMS:       t.Duration.Milliseconds(),
				SubmissionClient: "scrobbled",
			},
		},
	}
	if t.AlbumArtist != "" && t.AlbumArtist != t.Artist {
		p.TrackMetadata.AdditionalInfo.ReleaseArtist = t.AlbumArtist
	}
	if !listenedAt.IsZero() {
		p.ListenedAt = listenedAt.Unix()
	}
	return p
}

func (l *ListenBrainz) submit(ctx context.Context, listenType string, p *listenPayload) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(submission{ListenType: listenType, Payload: []*listenPayload{p}}); err != nil {
		return fmt.Errorf("encode listen: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+submitPath, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+l.token)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("unauthorized: %w", ErrListenBrainz)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(msg)), ErrListenBrainz)
	}
	return nil
}
