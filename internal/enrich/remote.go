package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"

	lastfmapi "github.com/shkh/lastfm-go/lastfm"
)

const maxImageSize = 10 << 20

// imageSizes lists Last.fm image sizes from most to least preferred.
var imageSizes = []string{"extralarge", "large", "mega", "medium", "small"}

type lastfmAlbums struct {
	api *lastfmapi.Api
}

// AlbumArtworkURL returns the best image URL album.getInfo reports. The
// library call takes no context, so it is abandoned once ctx is done.
func (l *lastfmAlbums) AlbumArtworkURL(ctx context.Context, artist, album string) (string, error) {
	return withContext(ctx, func() (string, error) {
		info, err := l.api.Album.GetInfo(lastfmapi.P{
			"artist":      artist,
			"album":       album,
			"autocorrect": 1,
		})
		if err != nil {
			return "", fmt.Errorf("album.getInfo: %w", err)
		}

		bySize := make(map[string]string, len(info.Images))
		for _, img := range info.Images {
			if img.Url != "" {
				bySize[img.Size] = img.Url
			}
		}
		for _, size := range imageSizes {
			if u, ok := bySize[size]; ok {
				return u, nil
			}
		}
		return "", nil
	})
}

// withContext runs fn in its own goroutine and returns early with ctx's
// error when ctx is done first.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}
