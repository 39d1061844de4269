package enrich

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/nfnt/resize"

	"github.com/llehouerou/scrobbled/internal/playback"
)

// thumbnailSize is the bounding box for notification icons, in pixels.
const thumbnailSize = 128

type thumbnailCache struct {
	dir string
}

func newThumbnailCache(dir string) *thumbnailCache {
	if dir == "" {
		dir = filepath.Join(xdg.CacheHome, "scrobbled", "artwork")
	}
	return &thumbnailCache{dir: dir}
}

func artworkKey(t playback.Track) string {
	artist := t.AlbumArtist
	if artist == "" {
		artist = t.Artist
	}
	album := t.Album
	if album == "" {
		// Singles without an album get their own entry.
		album = "track:" + t.PersistentID
	}
	sum := sha1.Sum([]byte(strings.ToLower(artist) + "\x00" + strings.ToLower(album)))
	return hex.EncodeToString(sum[:])
}

func (c *thumbnailCache) path(key string) string {
	return filepath.Join(c.dir, key+".png")
}

func (c *thumbnailCache) lookup(key string) (string, bool) {
	p := c.path(key)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

// store decodes data, shrinks it to fit thumbnailSize and writes it as PNG.
func (c *thumbnailCache) store(key string, data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	thumb := resize.Thumbnail(thumbnailSize, thumbnailSize, img, resize.Lanczos3)

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	p := c.path(key)
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, thumb); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close thumbnail: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", fmt.Errorf("rename thumbnail: %w", err)
	}
	return p, nil
}
