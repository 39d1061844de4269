// Package enrich gathers optional extra data about a track before it is
// reported: artwork for the presence icon, a MusicBrainz recording id and,
// for local files, the stream duration when the player reports none.
package enrich

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	lastfmapi "github.com/shkh/lastfm-go/lastfm"

	"github.com/llehouerou/scrobbled/internal/musicbrainz"
	"github.com/llehouerou/scrobbled/internal/playback"
	"github.com/llehouerou/scrobbled/internal/tags"
)

// Kinds is a set of enrichment kinds a destination asks for.
type Kinds uint8

const (
	KindArtwork Kinds = 1 << iota
	KindMBID
)

// Has reports whether all kinds in other are in k.
func (k Kinds) Has(other Kinds) bool {
	return k&other == other
}

// Bundle is the enrichment result. Missing pieces are left empty.
type Bundle struct {
	// ArtworkPath is a local thumbnail suitable for a notification icon.
	ArtworkPath string
	// MBID is a MusicBrainz recording id.
	MBID string
	// ReleaseMBID is the MusicBrainz release the recording was matched on.
	ReleaseMBID string
	// Duration is read from the local file when the track has none.
	Duration time.Duration
}

// Options configures a Provider.
type Options struct {
	Artwork     bool
	MusicBrainz bool
	UserAgent   string
	// LastfmKey and LastfmSecret enable remote artwork lookups.
	LastfmKey    string
	LastfmSecret string
	// CacheDir overrides where thumbnails are written.
	CacheDir string
}

type recordingLookup interface {
	LookupRecording(ctx context.Context, q musicbrainz.RecordingQuery) (musicbrainz.Recording, bool, error)
	GetCoverArt(ctx context.Context, releaseMBID string) ([]byte, error)
}

type albumArtwork interface {
	AlbumArtworkURL(ctx context.Context, artist, album string) (string, error)
}

// Provider answers enrichment requests. It never fails: anything it cannot
// find is simply absent from the bundle.
type Provider struct {
	logger  *slog.Logger
	opts    Options
	http    *http.Client
	mb      recordingLookup
	albums  albumArtwork
	thumbs  *thumbnailCache
	timeout time.Duration
}

// NewProvider creates a Provider.
func NewProvider(logger *slog.Logger, opts Options) *Provider {
	p := &Provider{
		logger:  logger,
		opts:    opts,
		http:    &http.Client{Timeout: 10 * time.Second},
		thumbs:  newThumbnailCache(opts.CacheDir),
		timeout: 15 * time.Second,
	}
	if opts.MusicBrainz {
		p.mb = musicbrainz.NewClient(opts.UserAgent)
	}
	if opts.Artwork && opts.LastfmKey != "" {
		p.albums = &lastfmAlbums{api: lastfmapi.New(opts.LastfmKey, opts.LastfmSecret)}
	}
	return p
}

// Solicit gathers the requested kinds for track.
func (p *Provider) Solicit(ctx context.Context, kinds Kinds, track playback.Track) Bundle {
	var b Bundle
	if track.Duration == 0 && track.Path != "" {
		b.Duration = p.localDuration(track.Path)
	}
	if kinds == 0 {
		return b
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if kinds.Has(KindMBID) {
		p.solicitMBID(ctx, track, p.readLocalTags(track.Path), &b)
	}
	if kinds.Has(KindArtwork) && p.opts.Artwork {
		p.solicitArtwork(ctx, track, &b)
	}
	return b
}

// readLocalTags returns the tags of the file at path, or nil when there is
// no readable local file.
func (p *Provider) readLocalTags(path string) *tags.Tag {
	if path == "" || !tags.IsMusicFile(path) {
		return nil
	}
	t, err := tags.Read(path)
	if err != nil {
		p.logger.Debug("read local tags", "path", path, "err", err)
		return nil
	}
	return t
}

func (p *Provider) localDuration(path string) time.Duration {
	if !tags.IsMusicFile(path) {
		return 0
	}
	d, err := tags.ReadDuration(path)
	if err != nil {
		p.logger.Debug("read local duration", "path", path, "err", err)
		return 0
	}
	return d
}

func (p *Provider) solicitMBID(ctx context.Context, track playback.Track, local *tags.Tag, b *Bundle) {
	if local != nil && validMBID(local.MBRecordingID) {
		b.MBID = local.MBRecordingID
		b.ReleaseMBID = local.MBReleaseID
		return
	}
	if p.mb == nil || track.Artist == "" || track.Title == "" {
		return
	}

	rec, ok, err := p.mb.LookupRecording(ctx, musicbrainz.RecordingQuery{
		Artist:   track.Artist,
		Title:    track.Title,
		Album:    track.Album,
		Duration: track.Duration,
	})
	if err != nil {
		p.logger.Warn("musicbrainz lookup failed", "artist", track.Artist, "title", track.Title, "err", err)
		return
	}
	if !ok || !validMBID(rec.ID) {
		p.logger.Debug("no musicbrainz match", "artist", track.Artist, "title", track.Title)
		return
	}
	b.MBID = rec.ID
	b.ReleaseMBID = rec.ReleaseID
}

func (p *Provider) solicitArtwork(ctx context.Context, track playback.Track, b *Bundle) {
	key := artworkKey(track)
	if path, ok := p.thumbs.lookup(key); ok {
		b.ArtworkPath = path
		return
	}

	var data []byte
	if track.Path != "" {
		pic, err := tags.ExtractCoverArt(track.Path)
		switch {
		case err != nil:
			p.logger.Debug("local artwork", "path", track.Path, "err", err)
		case pic != nil:
			data = pic.Data
		}
	}
	if data == nil && p.albums != nil && track.Album != "" {
		data = p.fetchAlbumArtwork(ctx, track)
	}
	if data == nil && p.mb != nil && b.ReleaseMBID != "" {
		var err error
		data, err = p.mb.GetCoverArt(ctx, b.ReleaseMBID)
		if err != nil {
			p.logger.Debug("cover art archive failed", "release", b.ReleaseMBID, "err", err)
		}
	}
	if data == nil {
		return
	}

	path, err := p.thumbs.store(key, data)
	if err != nil {
		p.logger.Debug("store artwork thumbnail", "err", err)
		return
	}
	b.ArtworkPath = path
}

func (p *Provider) fetchAlbumArtwork(ctx context.Context, track playback.Track) []byte {
	artist := track.AlbumArtist
	if artist == "" {
		artist = track.Artist
	}
	imageURL, err := p.albums.AlbumArtworkURL(ctx, artist, track.Album)
	if err != nil {
		p.logger.Debug("album.getInfo failed", "artist", artist, "album", track.Album, "err", err)
		return nil
	}
	if imageURL == "" {
		return nil
	}
	data, err := download(ctx, p.http, imageURL)
	if err != nil {
		p.logger.Debug("download artwork", "url", imageURL, "err", err)
		return nil
	}
	return data
}

func validMBID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
