package musicbrainz

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const (
	coverArtBaseURL = "https://coverartarchive.org"
	maxCoverArtSize = 10 << 20
)

// GetCoverArt fetches the front cover for a release from Cover Art Archive.
// Returns nil if no cover art is available. The 250px thumbnail is enough
// for a notification icon.
func (c *Client) GetCoverArt(ctx context.Context, releaseMBID string) ([]byte, error) {
	c.waitForRateLimit()

	reqURL := fmt.Sprintf("%s/release/%s/front-250", c.coverArtURL, releaseMBID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	// 404 means no cover art available - not an error
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverArtSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return data, nil
}
