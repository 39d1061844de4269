// Package musicbrainz provides a client for the MusicBrainz API.
package musicbrainz

import "time"

// Recording is a MusicBrainz recording matched by a search.
type Recording struct {
	ID           string
	Title        string
	Artist       string        // Extracted from artist-credit
	Length       time.Duration // Zero when unknown
	Score        int           // Search relevance score (0-100)
	ReleaseID    string        // First release the recording appears on
	ReleaseTitle string
}

// RecordingQuery describes the track to look up.
type RecordingQuery struct {
	Artist   string
	Title    string
	Album    string
	Duration time.Duration
}

// recordingSearchResponse is the raw response from recording search.
type recordingSearchResponse struct {
	Recordings []recordingResult `json:"recordings"`
}

// recordingResult is a single recording from search results.
type recordingResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Score        int            `json:"score"`
	Length       int            `json:"length"` // Duration in milliseconds
	ArtistCredit []artistCredit `json:"artist-credit"`
	Releases     []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"releases"`
}

// artistCredit represents an artist contribution.
type artistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
	JoinPhrase string `json:"joinphrase"`
}
