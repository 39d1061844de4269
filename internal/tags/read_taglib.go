package tags

import (
	"path/filepath"

	"go.senan.xyz/taglib"
)

// readWithTaglib reads metadata using TagLib when dhowden/tag fails.
func readWithTaglib(path string) (*Tag, error) {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return nil, err
	}
	tags := taglibTags(rawTags)

	title := tags.get(taglib.Title)
	if title == "" {
		title = filepath.Base(path)
	}

	artist := tags.get(taglib.Artist)
	albumArtist := tags.get(taglib.AlbumArtist)
	if albumArtist == "" {
		albumArtist = artist
	}

	trackNum, trackTotal := tags.parseNumberPair(taglib.TrackNumber)
	discNum, discTotal := tags.parseNumberPair(taglib.DiscNumber)
	if trackTotal == 0 {
		trackTotal = tags.getInt("TOTALTRACKS")
	}
	if discTotal == 0 {
		discTotal = tags.getInt("TOTALDISCS")
	}

	t := &Tag{
		Path:        path,
		Title:       title,
		Artist:      artist,
		AlbumArtist: albumArtist,
		Album:       tags.get(taglib.Album),
		TrackNumber: trackNum,
		TotalTracks: trackTotal,
		DiscNumber:  discNum,
		TotalDiscs:  discTotal,
	}
	applyTaglibExtended(tags, t)

	t.sanitize()
	return t, nil
}

// readTaglibExtendedTags fills dates and MusicBrainz ids from TagLib's
// property map.
func readTaglibExtendedTags(path string, t *Tag) {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return
	}
	applyTaglibExtended(taglibTags(rawTags), t)
}

func applyTaglibExtended(tags taglibTags, t *Tag) {
	if date := tags.get(taglib.Date); date != "" {
		t.Date = date
	}

	// MusicBrainz IDs: TagLib property names first, then the MP4 freeform
	// spellings Picard and Mutagen use.
	t.MBArtistID = tags.get(
		taglib.MusicBrainzArtistID,
		"MUSICBRAINZ ARTIST ID",
		"MusicBrainz Artist Id",
	)
	t.MBReleaseID = tags.get(
		taglib.MusicBrainzAlbumID,
		"MUSICBRAINZ ALBUM ID",
		"MusicBrainz Album Id",
	)
	t.MBRecordingID = tags.get(
		taglib.MusicBrainzTrackID,
		"MUSICBRAINZ TRACK ID",
		"MusicBrainz Track Id",
	)
	t.MBTrackID = tags.get(
		taglib.MusicBrainzReleaseTrackID,
		"MUSICBRAINZ RELEASE TRACK ID",
		"MusicBrainz Release Track Id",
	)
}
