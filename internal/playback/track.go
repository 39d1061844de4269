package playback

import "time"

// Track identifies what the player reports as the current item.
// PersistentID equality is the only signal that two polls saw the same track.
type Track struct {
	PersistentID string
	Title        string
	Artist       string
	Album        string
	AlbumArtist  string
	Duration     time.Duration
	TrackNumber  int
	// Start is the nominal start offset of the track within the item.
	Start time.Duration
	// Path is the local file backing the track, if the player reports one.
	Path string
}

// Same reports whether t and other are the same track.
func (t Track) Same(other Track) bool {
	return t.PersistentID != "" && t.PersistentID == other.PersistentID
}

// Snapshot is one poll sample of the player.
type Snapshot struct {
	State       State
	Position    time.Duration
	HasPosition bool
}
