package tags

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"go.senan.xyz/taglib"
)

// coverArtFilenames lists album folder images in priority order.
var coverArtFilenames = []string{
	"cover.jpg", "cover.jpeg", "cover.png",
	"folder.jpg", "folder.jpeg", "folder.png",
	"album.jpg", "album.jpeg", "album.png",
	"front.jpg", "front.jpeg", "front.png",
	"artwork.jpg", "artwork.jpeg", "artwork.png",
}

const (
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"
)

// Picture is an image attached to or found next to a music file.
type Picture struct {
	Data     []byte
	MIMEType string
	// Source is "embedded" or the path of the folder image.
	Source string
}

// ExtractCoverArt returns the cover of the file at path: embedded art when
// present, otherwise a common image file in the same directory. It returns
// nil without error when there is none.
func ExtractCoverArt(path string) (*Picture, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if pic := extractEmbeddedArt(path); pic != nil {
		return pic, nil
	}
	return findFolderArt(filepath.Dir(path)), nil
}

// extractEmbeddedArt reads embedded art with dhowden/tag, falling back to
// TagLib for containers it cannot parse.
func extractEmbeddedArt(path string) *Picture {
	if f, err := os.Open(path); err == nil {
		m, err := tag.ReadFrom(f)
		f.Close()
		if err == nil {
			if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
				return &Picture{Data: pic.Data, MIMEType: mimeType(pic.MIMEType, pic.Data), Source: "embedded"}
			}
			return nil
		}
	}

	data, err := taglib.ReadImage(path)
	if err != nil || len(data) == 0 {
		return nil
	}
	return &Picture{Data: data, MIMEType: mimeType("", data), Source: "embedded"}
}

// findFolderArt looks for common cover art files in dir.
func findFolderArt(dir string) *Picture {
	for _, filename := range coverArtFilenames {
		for _, name := range []string{filename, strings.ToUpper(filename[:1]) + filename[1:], strings.ToUpper(filename)} {
			imgPath := filepath.Join(dir, name)
			data, err := os.ReadFile(imgPath)
			if err != nil || len(data) == 0 {
				continue
			}
			return &Picture{Data: data, MIMEType: extensionMIME(filename), Source: imgPath}
		}
	}
	return nil
}

func extensionMIME(filename string) string {
	switch filepath.Ext(filename) {
	case ".jpg", ".jpeg":
		return mimeJPEG
	case ".png":
		return mimePNG
	}
	return "application/octet-stream"
}

func mimeType(declared string, data []byte) string {
	if declared != "" {
		return strings.ToLower(declared)
	}
	return http.DetectContentType(data)
}
