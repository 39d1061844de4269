// Package mpris polls a media player over the MPRIS D-Bus interface.
package mpris

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/llehouerou/scrobbled/internal/playback"
)

const busPrefix = "org.mpris.MediaPlayer2."

// noTrack is the track id players report when nothing is loaded.
const noTrack = "/org/mpris/MediaPlayer2/TrackList/NoTrack"

// decodeSnapshot converts the player interface properties into a snapshot.
func decodeSnapshot(props map[string]dbus.Variant) (playback.Snapshot, error) {
	v, ok := props["PlaybackStatus"]
	if !ok {
		return playback.Snapshot{}, fmt.Errorf("%w: missing PlaybackStatus", playback.ErrDeserialization)
	}
	status, ok := v.Value().(string)
	if !ok {
		return playback.Snapshot{}, fmt.Errorf("%w: PlaybackStatus is %s", playback.ErrDeserialization, v.Signature())
	}

	var snap playback.Snapshot
	switch status {
	case "Playing":
		snap.State = playback.StatePlaying
	case "Paused":
		snap.State = playback.StatePaused
	case "Stopped":
		snap.State = playback.StateStopped
	default:
		return playback.Snapshot{}, fmt.Errorf("%w: unknown status %q", playback.ErrDeserialization, status)
	}

	// Rate is playback speed; any positive value is still normal playback.
	if snap.State == playback.StatePlaying {
		if rate, ok := floatValue(props["Rate"]); ok && rate < 0 {
			snap.State = playback.StateRewinding
		}
	}

	if us, ok := integer(props["Position"]); ok && us >= 0 {
		snap.Position = time.Duration(us) * time.Microsecond
		snap.HasPosition = true
	}
	return snap, nil
}

// decodeTrack converts an xesam metadata map into a track. An empty map or
// the NoTrack id means nothing is loaded.
func decodeTrack(meta map[string]dbus.Variant) (playback.Track, error) {
	if len(meta) == 0 {
		return playback.Track{}, playback.ErrNotPlaying
	}

	var t playback.Track
	switch id := meta["mpris:trackid"].Value().(type) {
	case dbus.ObjectPath:
		t.PersistentID = string(id)
	case string:
		t.PersistentID = id
	}
	if t.PersistentID == noTrack {
		return playback.Track{}, playback.ErrNotPlaying
	}

	t.Title, _ = meta["xesam:title"].Value().(string)
	t.Album, _ = meta["xesam:album"].Value().(string)
	t.Artist = strings.Join(stringList(meta["xesam:artist"]), ", ")
	t.AlbumArtist = strings.Join(stringList(meta["xesam:albumArtist"]), ", ")

	if us, ok := integer(meta["mpris:length"]); ok && us > 0 {
		t.Duration = time.Duration(us) * time.Microsecond
	}
	if n, ok := integer(meta["xesam:trackNumber"]); ok && n > 0 {
		t.TrackNumber = int(n)
	}

	if raw, ok := meta["xesam:url"].Value().(string); ok {
		if u, err := url.Parse(raw); err == nil && u.Scheme == "file" {
			t.Path = u.Path
		}
		// Some players only identify tracks by url.
		if t.PersistentID == "" {
			t.PersistentID = raw
		}
	}

	if t.PersistentID == "" {
		return playback.Track{}, fmt.Errorf("%w: track has no id", playback.ErrDeserialization)
	}
	if t.Title == "" {
		return playback.Track{}, fmt.Errorf("%w: track has no title", playback.ErrDeserialization)
	}
	return t, nil
}

func stringList(v dbus.Variant) []string {
	switch s := v.Value().(type) {
	case []string:
		return s
	case string:
		if s != "" {
			return []string{s}
		}
	}
	return nil
}

// integer accepts every integer width players use for lengths and positions.
func integer(v dbus.Variant) (int64, bool) {
	switch n := v.Value().(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint16:
		return int64(n), true
	case byte:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func floatValue(v dbus.Variant) (float64, bool) {
	switch n := v.Value().(type) {
	case float64:
		return n, true
	case int64, int32, uint64, uint32:
		i, _ := integer(v)
		return float64(i), true
	}
	return 0, false
}

// pickPlayer returns the first MPRIS bus name, in sorted order, matching
// player.
func pickPlayer(names []string, player string) (string, bool) {
	prefix := busPrefix + player
	var found []string
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			found = append(found, n)
		}
	}
	if len(found) == 0 {
		return "", false
	}
	slices.Sort(found)
	return found[0], true
}
