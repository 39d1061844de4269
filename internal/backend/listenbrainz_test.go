package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/llehouerou/scrobbled/internal/enrich"
)

func newListenBrainzServer(t *testing.T, status int) (*ListenBrainz, *[]submission) {
	t.Helper()
	var got []submission
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != submitPath {
			t.Errorf("path = %q, want %q", r.URL.Path, submitPath)
		}
		if got := r.Header.Get("Authorization"); got != "Token tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}

		var sub submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			t.Errorf("decode submission: %v", err)
		}
		got = append(got, sub)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return NewListenBrainz(discard, server.URL+"/", "tok"), &got
}

func TestListenBrainz_PlayingNow(t *testing.T) {
	dest, got := newListenBrainzServer(t, http.StatusOK)

	require.NoError(t, dest.TrackStarted(context.Background(), Started{
		Track: sampleTrack,
		Data:  enrich.Bundle{MBID: testMBID},
	}))

	require.Len(t, *got, 1)
	sub := (*got)[0]
	require.Equal(t, listenTypePlayingNow, sub.ListenType)
	require.Len(t, sub.Payload, 1)
	p := sub.Payload[0]
	require.Zero(t, p.ListenedAt)
	require.Equal(t, "Artist", p.TrackMetadata.ArtistName)
	require.Equal(t, "Title", p.TrackMetadata.TrackName)
	require.Equal(t, "Album", p.TrackMetadata.ReleaseName)
	require.Equal(t, testMBID, p.TrackMetadata.AdditionalInfo.RecordingMBID)
	require.Equal(t, int64(200_000), p.TrackMetadata.AdditionalInfo.DurationMS)
	require.Empty(t, p.TrackMetadata.AdditionalInfo.ReleaseArtist)
}

func TestListenBrainz_Single(t *testing.T) {
	dest, got := newListenBrainzServer(t, http.StatusOK)
	started := time.Unix(1_700_000_000, 0)

	track := sampleTrack
	track.AlbumArtist = "Various Artists"
	require.NoError(t, dest.TrackEnded(context.Background(), Event{Track: track, StartedAt: started}))

	require.Len(t, *got, 1)
	sub := (*got)[0]
	require.Equal(t, listenTypeSingle, sub.ListenType)
	require.Equal(t, int64(1_700_000_000), sub.Payload[0].ListenedAt)
	require.Equal(t, "Various Artists", sub.Payload[0].TrackMetadata.AdditionalInfo.ReleaseArtist)
	require.Empty(t, sub.Payload[0].TrackMetadata.AdditionalInfo.RecordingMBID)
}

func TestListenBrainz_IncompleteTrackForgetsMBID(t *testing.T) {
	dest, got := newListenBrainzServer(t, http.StatusOK)

	track := sampleTrack
	track.Artist = ""
	require.NoError(t, dest.TrackStarted(context.Background(), Started{
		Track: track,
		Data:  enrich.Bundle{MBID: testMBID},
	}))
	require.NoError(t, dest.TrackEnded(context.Background(), Event{Track: track}))

	require.Empty(t, *got)
	dest.mu.Lock()
	defer dest.mu.Unlock()
	require.NotContains(t, dest.mbid, track.PersistentID)
}

func TestListenBrainz_Errors(t *testing.T) {
	dest, _ := newListenBrainzServer(t, http.StatusUnauthorized)
	err := dest.TrackEnded(context.Background(), Event{Track: sampleTrack})
	require.ErrorIs(t, err, ErrListenBrainz)
	require.Contains(t, err.Error(), "unauthorized")

	dest, _ = newListenBrainzServer(t, http.StatusBadRequest)
	err = dest.TrackStarted(context.Background(), Started{Track: sampleTrack})
	require.ErrorIs(t, err, ErrListenBrainz)
}

func TestListenBrainz_Eligible(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		dest := NewListenBrainz(discard, "", "tok")
		require.Equal(t, ListenBrainzURL, dest.baseURL)

		long := sampleTrack
		long.Duration = 500 * time.Second
		require.False(t, dest.Eligible(Event{Track: long, Listened: heardLedger(239 * time.Second)}))
		require.True(t, dest.Eligible(Event{Track: long, Listened: heardLedger(240 * time.Second)}))

		short := sampleTrack
		short.Duration = 25 * time.Second
		require.False(t, dest.Eligible(Event{Track: short, Listened: heardLedger(time.Hour)}))
	})
}
