package lastfm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MaxBatchSize is the largest number of scrobbles accepted in one call.
const MaxBatchSize = 50

// TrackInfo describes a heard track.
type TrackInfo struct {
	Artist      string
	Track       string
	Album       string
	AlbumArtist string // only sent when different from Artist
	Duration    time.Duration
	TrackNumber int
	MBID        string // MusicBrainz recording id
}

// Scrobble is a track listened to at Timestamp.
type Scrobble struct {
	TrackInfo
	Timestamp    time.Time
	ChosenByUser *bool
}

// IgnoredReason explains why the service ignored a submission.
type IgnoredReason int

const (
	NotIgnored IgnoredReason = iota
	IgnoredArtist
	IgnoredTrack
	IgnoredTimestampTooOld
	IgnoredTimestampTooNew
	IgnoredDailyLimit
	IgnoredUnknown
)

func ignoredReason(code int) IgnoredReason {
	if code >= int(NotIgnored) && code <= int(IgnoredDailyLimit) {
		return IgnoredReason(code)
	}
	return IgnoredUnknown
}

// String returns a short description of the reason.
func (r IgnoredReason) String() string {
	switch r {
	case NotIgnored:
		return "not ignored"
	case IgnoredArtist:
		return "artist ignored"
	case IgnoredTrack:
		return "track ignored"
	case IgnoredTimestampTooOld:
		return "timestamp too old"
	case IgnoredTimestampTooNew:
		return "timestamp too new"
	case IgnoredDailyLimit:
		return "daily scrobble limit exceeded"
	case IgnoredUnknown:
		return "ignored for an unknown reason"
	}
	return "ignored for an unknown reason"
}

// ScrobbleResult is the service's verdict on one submitted scrobble.
type ScrobbleResult struct {
	Artist         string
	Track          string
	Album          string
	Corrected      bool
	Ignored        IgnoredReason
	IgnoredMessage string
}

// ScrobbleResponse summarizes a track.scrobble call.
type ScrobbleResponse struct {
	Accepted int
	Ignored  int
	Results  []ScrobbleResult
}

// NowPlayingResponse is the result of a track.updateNowPlaying call.
type NowPlayingResponse struct {
	Artist         string
	Track          string
	Album          string
	Ignored        IgnoredReason
	IgnoredMessage string
}

// UpdateNowPlaying tells the service what the user is listening to.
func (c *AuthorizedClient) UpdateNowPlaying(ctx context.Context, track TrackInfo) (NowPlayingResponse, error) {
	params := NewParams()
	setTrackParams(params, track, "")

	var resp nowPlayingBody
	if err := c.callAuthorized(ctx, "track.updateNowPlaying", params, &resp); err != nil {
		return NowPlayingResponse{}, fmt.Errorf("update now playing: %w", err)
	}

	np := resp.NowPlaying
	return NowPlayingResponse{
		Artist:         np.Artist.Text,
		Track:          np.Track.Text,
		Album:          np.Album.Text,
		Ignored:        ignoredReason(int(np.IgnoredMessage.Code)),
		IgnoredMessage: np.IgnoredMessage.Text,
	}, nil
}

// Scrobble submits between 1 and MaxBatchSize listens.
func (c *AuthorizedClient) Scrobble(ctx context.Context, scrobbles []Scrobble) (ScrobbleResponse, error) {
	switch {
	case len(scrobbles) == 0:
		return ScrobbleResponse{}, ErrNoScrobbles
	case len(scrobbles) > MaxBatchSize:
		return ScrobbleResponse{}, ErrTooManyScrobbles
	}

	params := NewParams()
	for i, s := range scrobbles {
		suffix := ""
		if len(scrobbles) > 1 {
			suffix = "[" + strconv.Itoa(i) + "]"
		}
		setTrackParams(params, s.TrackInfo, suffix)
		params.Set("timestamp"+suffix, strconv.FormatInt(s.Timestamp.Unix(), 10))
		if s.ChosenByUser != nil {
			params.Set("chosenByUser"+suffix, boolParam(*s.ChosenByUser))
		}
	}

	var resp scrobbleBody
	if err := c.callAuthorized(ctx, "track.scrobble", params, &resp); err != nil {
		return ScrobbleResponse{}, fmt.Errorf("scrobble: %w", err)
	}

	items, err := resp.Scrobbles.items()
	if err != nil {
		return ScrobbleResponse{}, fmt.Errorf("scrobble: decode results: %w", err)
	}

	out := ScrobbleResponse{
		Accepted: int(resp.Scrobbles.Attr.Accepted),
		Ignored:  int(resp.Scrobbles.Attr.Ignored),
		Results:  make([]ScrobbleResult, 0, len(items)),
	}
	for _, it := range items {
		out.Results = append(out.Results, ScrobbleResult{
			Artist:         it.Artist.Text,
			Track:          it.Track.Text,
			Album:          it.Album.Text,
			Corrected:      it.Artist.Corrected != 0 || it.Track.Corrected != 0 || it.Album.Corrected != 0,
			Ignored:        ignoredReason(int(it.IgnoredMessage.Code)),
			IgnoredMessage: it.IgnoredMessage.Text,
		})
	}
	return out, nil
}

func setTrackParams(p *Params, t TrackInfo, suffix string) {
	p.Set("artist"+suffix, t.Artist)
	p.Set("track"+suffix, t.Track)
	if t.Album != "" {
		p.Set("album"+suffix, t.Album)
	}
	if t.AlbumArtist != "" && t.AlbumArtist != t.Artist {
		p.Set("albumArtist"+suffix, t.AlbumArtist)
	}
	if t.Duration > 0 {
		p.Set("duration"+suffix, strconv.Itoa(int(t.Duration.Seconds())))
	}
	if t.TrackNumber > 0 {
		p.Set("trackNumber"+suffix, strconv.Itoa(t.TrackNumber))
	}
	if t.MBID != "" {
		p.Set("mbid"+suffix, t.MBID)
	}
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// flexInt decodes a JSON number or a numeric string; the service uses both.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("parse number %q: %w", data, err)
	}
	*f = flexInt(n)
	return nil
}

type correctable struct {
	Corrected flexInt `json:"corrected"`
	Text      string  `json:"#text"`
}

type ignoredMessage struct {
	Code flexInt `json:"code"`
	Text string  `json:"#text"`
}

type nowPlayingBody struct {
	NowPlaying struct {
		Artist         correctable    `json:"artist"`
		Track          correctable    `json:"track"`
		Album          correctable    `json:"album"`
		IgnoredMessage ignoredMessage `json:"ignoredMessage"`
	} `json:"nowplaying"`
}

type scrobbleItem struct {
	Artist         correctable    `json:"artist"`
	Track          correctable    `json:"track"`
	Album          correctable    `json:"album"`
	IgnoredMessage ignoredMessage `json:"ignoredMessage"`
}

type scrobblesBody struct {
	Attr struct {
		Accepted flexInt `json:"accepted"`
		Ignored  flexInt `json:"ignored"`
	} `json:"@attr"`
	// Scrobble is an object for a single submission and an array otherwise.
	Scrobble json.RawMessage `json:"scrobble"`
}

func (b scrobblesBody) items() ([]scrobbleItem, error) {
	raw := bytes.TrimSpace(b.Scrobble)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []scrobbleItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var item scrobbleItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	return []scrobbleItem{item}, nil
}

type scrobbleBody struct {
	Scrobbles scrobblesBody `json:"scrobbles"`
}
