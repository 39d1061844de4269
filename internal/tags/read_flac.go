package tags

import (
	"strconv"
	"strings"

	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
)

// readFLACExtendedTags reads the Vorbis comments dhowden/tag does not expose.
func readFLACExtendedTags(path string, t *Tag) {
	comments := readFLACComments(path)
	if comments == nil {
		return
	}

	if date := comments["DATE"]; date != "" {
		t.Date = date
	} else if year := comments["YEAR"]; year != "" {
		t.Date = year
	}

	t.MBArtistID = comments["MUSICBRAINZ_ARTISTID"]
	t.MBReleaseID = comments["MUSICBRAINZ_ALBUMID"]
	t.MBRecordingID = comments["MUSICBRAINZ_TRACKID"]
	t.MBTrackID = comments["MUSICBRAINZ_RELEASETRACKID"]

	if t.TotalTracks == 0 {
		t.TotalTracks, _ = strconv.Atoi(comments["TOTALTRACKS"])
	}
	if t.TotalDiscs == 0 {
		t.TotalDiscs, _ = strconv.Atoi(comments["TOTALDISCS"])
	}
}

// readFLACComments returns the Vorbis comments of a FLAC file keyed by
// upper-cased field name, or nil when the file has none.
func readFLACComments(path string) map[string]string {
	f, err := goflac.ParseFile(path)
	if err != nil {
		return nil
	}

	for _, meta := range f.Meta {
		if meta.Type != goflac.VorbisComment {
			continue
		}
		block, err := flacvorbis.ParseFromMetaDataBlock(*meta)
		if err != nil {
			return nil
		}
		return vorbisComments(block.Comments)
	}
	return nil
}

// vorbisComments splits KEY=value entries. The first value of a field wins.
func vorbisComments(entries []string) map[string]string {
	comments := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		key = strings.ToUpper(key)
		if _, seen := comments[key]; !seen {
			comments[key] = value
		}
	}
	return comments
}
