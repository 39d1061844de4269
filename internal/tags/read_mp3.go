package tags

import (
	"path/filepath"

	"github.com/bogem/id3v2/v2"
)

// readMP3ExtendedTags reads the ID3v2 frames dhowden/tag does not expose.
func readMP3ExtendedTags(path string, t *Tag) {
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return
	}
	defer id3tag.Close()

	// ID3v2.4 recording date, else ID3v2.3 TYER with TDAT (DDMM)
	if date := getID3TextFrame(id3tag, "TDRC"); date != "" {
		t.Date = date
	} else if year := getID3TextFrame(id3tag, "TYER"); year != "" {
		t.Date = year
		if tdat := getID3TextFrame(id3tag, "TDAT"); len(tdat) == 4 {
			t.Date = year + "-" + tdat[2:4] + "-" + tdat[0:2]
		}
	}

	t.MBArtistID = getID3TXXXFrame(id3tag, "MusicBrainz Artist Id")
	t.MBReleaseID = getID3TXXXFrame(id3tag, "MusicBrainz Album Id")
	t.MBTrackID = getID3TXXXFrame(id3tag, "MusicBrainz Release Track Id")

	for _, frame := range id3tag.GetFrames("UFID") {
		if ufid, ok := frame.(id3v2.UFIDFrame); ok && ufid.OwnerIdentifier == musicBrainzOwner {
			t.MBRecordingID = string(ufid.Identifier)
			break
		}
	}
	// Some taggers only write the TXXX variant.
	if t.MBRecordingID == "" {
		t.MBRecordingID = getID3TXXXFrame(id3tag, "MusicBrainz Track Id")
	}
}

// readMP3WithID3v2Fallback reads MP3 metadata using only the id3v2 library.
// Used when dhowden/tag fails (e.g., on some UTF-16 encoded tags).
func readMP3WithID3v2Fallback(path string) (*Tag, error) {
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, err
	}
	defer id3tag.Close()

	title := id3tag.Title()
	if title == "" {
		title = filepath.Base(path)
	}

	artist := id3tag.Artist()
	albumArtist := getID3TextFrame(id3tag, "TPE2")
	if albumArtist == "" {
		albumArtist = artist
	}

	track, totalTracks := parseTrackNumber(getID3TextFrame(id3tag, "TRCK"))
	disc, totalDiscs := parseTrackNumber(getID3TextFrame(id3tag, "TPOS"))

	date := ""
	if year := id3tag.Year(); len(year) >= 4 {
		date = year[:4]
	}

	t := &Tag{
		Path:        path,
		Title:       title,
		Artist:      artist,
		AlbumArtist: albumArtist,
		Album:       id3tag.Album(),
		Date:        date,
		TrackNumber: track,
		TotalTracks: totalTracks,
		DiscNumber:  disc,
		TotalDiscs:  totalDiscs,
	}

	readMP3ExtendedTags(path, t)

	t.sanitize()
	return t, nil
}

// getID3TextFrame reads a text frame value from an ID3v2 tag.
func getID3TextFrame(id3tag *id3v2.Tag, frameID string) string {
	frames := id3tag.GetFrames(frameID)
	if len(frames) == 0 {
		return ""
	}
	if tf, ok := frames[0].(id3v2.TextFrame); ok {
		return tf.Text
	}
	return ""
}

// getID3TXXXFrame reads a user-defined text frame (TXXX) value.
func getID3TXXXFrame(id3tag *id3v2.Tag, description string) string {
	for _, frame := range id3tag.GetFrames("TXXX") {
		if txxx, ok := frame.(id3v2.UserDefinedTextFrame); ok && txxx.Description == description {
			return txxx.Value
		}
	}
	return ""
}
