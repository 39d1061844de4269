package tags

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// Read reads tag metadata from a music file.
// It returns only tag metadata, not audio stream properties.
func Read(path string) (*Tag, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !IsMusicFile(path) {
		return nil, fmt.Errorf("unsupported format: %s", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		switch ext {
		case ExtMP3:
			// dhowden/tag has issues with some UTF-16 encoded ID3 tags
			return readMP3WithID3v2Fallback(path)
		case ExtM4A, ExtMP4, ExtFLAC, ExtOPUS, ExtOGG:
			return readWithTaglib(path)
		}
		return nil, err
	}

	title := m.Title()
	if title == "" {
		title = filepath.Base(path)
	}

	track, totalTracks := m.Track()
	disc, totalDiscs := m.Disc()

	albumArtist := m.AlbumArtist()
	if albumArtist == "" {
		albumArtist = m.Artist()
	}

	t := &Tag{
		Path:        path,
		Title:       title,
		Artist:      m.Artist(),
		AlbumArtist: albumArtist,
		Album:       m.Album(),
		Date:        yearToDate(m.Year()),
		TrackNumber: track,
		TotalTracks: totalTracks,
		DiscNumber:  disc,
		TotalDiscs:  totalDiscs,
	}

	switch ext {
	case ExtMP3:
		readMP3ExtendedTags(path, t)
	case ExtFLAC:
		readFLACExtendedTags(path, t)
	case ExtOPUS, ExtOGG, ExtM4A, ExtMP4:
		readTaglibExtendedTags(path, t)
	}

	t.sanitize()
	return t, nil
}

// yearToDate converts a year integer to a date string.
// Returns empty string for year 0.
func yearToDate(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}
