package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/llehouerou/scrobbled/internal/enrich"
	"github.com/llehouerou/scrobbled/internal/lastfm"
	"github.com/llehouerou/scrobbled/internal/listened"
	"github.com/llehouerou/scrobbled/internal/playback"
)

const testMBID = "916b242d-d439-4ae4-a439-556eef99c06e"

type recordedForms struct {
	mu    sync.Mutex
	forms []url.Values
}

func (r *recordedForms) all() []url.Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]url.Values(nil), r.forms...)
}

func newLastFMServer(t *testing.T, status int, body string) (*lastfm.AuthorizedClient, *recordedForms) {
	t.Helper()
	rec := &recordedForms{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		rec.mu.Lock()
		rec.forms = append(rec.forms, r.PostForm)
		rec.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	id, err := lastfm.NewClientIdentity("scrobbled/test",
		"0123456789abcdef0123456789abcdef", "fedcba9876543210fedcba9876543210")
	require.NoError(t, err)
	return lastfm.NewAuthorizedClient(id, "sk1", lastfm.WithBaseURL(server.URL+"/2.0/")), rec
}

var sampleTrack = playback.Track{
	PersistentID: "ABC",
	Title:        "Title",
	Artist:       "Artist",
	Album:        "Album - Single",
	AlbumArtist:  "Artist",
	Duration:     200 * time.Second,
	TrackNumber:  1,
}

func TestLastFM_TrackStartedSendsNowPlaying(t *testing.T) {
	client, rec := newLastFMServer(t, http.StatusOK, `{"nowplaying":{}}`)
	dest := NewLastFM(discard, client)

	err := dest.TrackStarted(context.Background(), Started{
		Track: sampleTrack,
		Data:  enrich.Bundle{MBID: testMBID},
	})
	require.NoError(t, err)

	forms := rec.all()
	require.Len(t, forms, 1)
	f := forms[0]
	require.Equal(t, "track.updateNowPlaying", f.Get("method"))
	require.Equal(t, "Album", f.Get("album"))
	require.Equal(t, testMBID, f.Get("mbid"))
	require.Equal(t, "200", f.Get("duration"))
	require.NotContains(t, f, "albumArtist")
}

func TestLastFM_TrackEndedScrobblesWithStartTime(t *testing.T) {
	client, rec := newLastFMServer(t, http.StatusOK,
		`{"scrobbles":{"scrobble":{"ignoredMessage":{"code":"0"}},"@attr":{"accepted":1,"ignored":0}}}`)
	dest := NewLastFM(discard, client)
	started := time.Unix(1_700_000_000, 0)

	require.NoError(t, dest.TrackStarted(context.Background(), Started{
		Track: sampleTrack,
		Data:  enrich.Bundle{MBID: testMBID},
	}))
	require.NoError(t, dest.TrackEnded(context.Background(), Event{
		Track:     sampleTrack,
		StartedAt: started,
		Listened:  listened.NewShared(listened.New()),
	}))

	forms := rec.all()
	require.Len(t, forms, 2)
	f := forms[1]
	require.Equal(t, "track.scrobble", f.Get("method"))
	require.Equal(t, "1700000000", f.Get("timestamp"))
	require.Equal(t, testMBID, f.Get("mbid"))
}

func TestLastFM_InvalidMBIDIsDropped(t *testing.T) {
	client, rec := newLastFMServer(t, http.StatusOK, `{"nowplaying":{}}`)
	dest := NewLastFM(discard, client)

	require.NoError(t, dest.TrackStarted(context.Background(), Started{
		Track: sampleTrack,
		Data:  enrich.Bundle{MBID: "garbage"},
	}))
	require.NotContains(t, rec.all()[0], "mbid")
}

func TestLastFM_SkipsIncompleteTrack(t *testing.T) {
	client, rec := newLastFMServer(t, http.StatusOK, `{}`)
	dest := NewLastFM(discard, client)

	track := sampleTrack
	track.Artist = ""
	require.NoError(t, dest.TrackStarted(context.Background(), Started{Track: track}))
	require.NoError(t, dest.TrackEnded(context.Background(), Event{Track: track}))
	require.Empty(t, rec.all())
}

func TestLastFM_InvalidSessionKeyError(t *testing.T) {
	client, _ := newLastFMServer(t, http.StatusForbidden, `{"error":9,"message":"Invalid session key"}`)
	dest := NewLastFM(discard, client)

	err := dest.TrackStarted(context.Background(), Started{Track: sampleTrack})
	require.Error(t, err)
	require.Contains(t, err.Error(), "scrobbled auth")

	cause, ok := lastfm.CauseOf(err)
	require.True(t, ok)
	require.Equal(t, lastfm.CauseInvalidSessionKey, cause)
}

func TestLastFM_Eligible(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		dest := NewLastFM(discard, nil)
		require.Equal(t, enrich.KindMBID, dest.Solicit())

		short := Event{Track: sampleTrack, Listened: heardLedger(99 * time.Second)}
		require.False(t, dest.Eligible(short))

		enough := Event{Track: sampleTrack, Listened: heardLedger(100 * time.Second)}
		require.True(t, dest.Eligible(enough))
	})
}
