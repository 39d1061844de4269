// Package tags reads metadata and stream properties from local music files.
// It handles MP3, FLAC, Ogg (Opus/Vorbis) and M4A.
package tags

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// File extensions supported by the tags package.
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
	ExtOPUS = ".opus"
	ExtOGG  = ".ogg"
	ExtM4A  = ".m4a"
	ExtMP4  = ".mp4"
)

// id3Magic is the magic bytes for ID3v2 header detection.
const id3Magic = "ID3"

// musicBrainzOwner is the UFID owner MusicBrainz taggers write the
// recording id under.
const musicBrainzOwner = "http://musicbrainz.org"

// Tag is the subset of file metadata used when reporting a play.
type Tag struct {
	Path        string
	Title       string
	Artist      string
	AlbumArtist string
	Album       string

	TrackNumber int
	TotalTracks int
	DiscNumber  int
	TotalDiscs  int

	Date string // YYYY-MM-DD or YYYY

	// MusicBrainz IDs
	MBArtistID    string
	MBReleaseID   string
	MBRecordingID string
	MBTrackID     string
}

// AudioInfo contains audio stream properties (not tags).
type AudioInfo struct {
	Duration   time.Duration
	Format     string // MP3, FLAC, OPUS, AAC, ALAC
	SampleRate int
	BitDepth   int
}

// IsMusicFile returns true if the path has a supported music file extension.
func IsMusicFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtMP3, ExtFLAC, ExtOPUS, ExtOGG, ExtM4A, ExtMP4:
		return true
	}
	return false
}

// sanitize trims whitespace the taggers sometimes leave around values.
func (t *Tag) sanitize() {
	for _, s := range []*string{
		&t.Title, &t.Artist, &t.AlbumArtist, &t.Album, &t.Date,
		&t.MBArtistID, &t.MBReleaseID, &t.MBRecordingID, &t.MBTrackID,
	} {
		*s = strings.TrimSpace(strings.TrimRight(*s, "\x00"))
	}
}

// taglibTags wraps a taglib result map with helper methods.
type taglibTags map[string][]string

// get returns the first value for any of the given keys, or empty string if not found.
func (t taglibTags) get(keys ...string) string {
	for _, key := range keys {
		if values, ok := t[key]; ok && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// getInt returns the first value as an integer, or 0 if not found or invalid.
func (t taglibTags) getInt(key string) int {
	n, _ := strconv.Atoi(t.get(key))
	return n
}

// parseNumberPair parses a track/disc number that may be "N" or "N/M" format.
func (t taglibTags) parseNumberPair(key string) (num, total int) {
	return parseTrackNumber(t.get(key))
}

// parseTrackNumber parses a track number string like "5" or "5/10".
func parseTrackNumber(s string) (num, total int) {
	if s == "" {
		return 0, 0
	}
	parts := strings.SplitN(s, "/", 2)
	num, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	if len(parts) == 2 {
		total, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return num, total
}
