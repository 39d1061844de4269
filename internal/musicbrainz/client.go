package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	baseURL      = "https://musicbrainz.org/ws/2"
	rateLimitDur = time.Second // MusicBrainz requires 1 request per second

	// Retry configuration
	maxRetries   = 3
	initialDelay = 2 * time.Second
	maxDelay     = 30 * time.Second

	// MinScore is the lowest search score accepted as a match.
	MinScore = 90
	// lengthTolerance bounds how far a recording's length may be from the
	// played track when both are known.
	lengthTolerance = 10 * time.Second
)

// Client provides access to the MusicBrainz API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	coverArtURL string
	userAgent   string
	lastRequest time.Time
	mu          sync.Mutex
}

// NewClient creates a new MusicBrainz API client. MusicBrainz rejects
// requests without a meaningful user agent.
func NewClient(userAgent string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		coverArtURL: coverArtBaseURL,
		userAgent:   userAgent,
	}
}

// SearchRecordings searches for recordings matching q, best score first.
func (c *Client) SearchRecordings(ctx context.Context, q RecordingQuery) ([]Recording, error) {
	c.waitForRateLimit()

	params := url.Values{}
	params.Set("query", buildRecordingQuery(q))
	params.Set("fmt", "json")
	params.Set("limit", "10")

	reqURL := fmt.Sprintf("%s/recording?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("API status %d: %s", resp.StatusCode, string(body))
	}

	var result recordingSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return convertRecordings(result.Recordings), nil
}

// LookupRecording returns the best recording for q. ok is false when no
// result is confident enough.
func (c *Client) LookupRecording(ctx context.Context, q RecordingQuery) (rec Recording, ok bool, err error) {
	recs, err := c.SearchRecordings(ctx, q)
	if err != nil {
		return Recording{}, false, err
	}
	for _, r := range recs {
		if r.Score < MinScore {
			break
		}
		if q.Duration > 0 && r.Length > 0 && absDuration(r.Length-q.Duration) > lengthTolerance {
			continue
		}
		return r, true, nil
	}
	return Recording{}, false, nil
}

// buildRecordingQuery builds a Lucene query. Quotes inside values are
// escaped so titles cannot break out of the phrase.
func buildRecordingQuery(q RecordingQuery) string {
	parts := []string{
		`recording:"` + escapeLucene(q.Title) + `"`,
		`artist:"` + escapeLucene(q.Artist) + `"`,
	}
	if q.Album != "" {
		parts = append(parts, `release:"`+escapeLucene(q.Album)+`"`)
	}
	return strings.Join(parts, " AND ")
}

func escapeLucene(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// waitForRateLimit ensures we don't exceed MusicBrainz rate limits.
func (c *Client) waitForRateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < rateLimitDur {
		time.Sleep(rateLimitDur - elapsed)
	}
	c.lastRequest = time.Now()
}

// doRequestWithRetry executes an HTTP request with exponential backoff retry.
// Retries on 5xx errors and network errors, unless the request context is done.
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, maxDelay)
			c.waitForRateLimit() // Re-apply rate limit after retry delay
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Success or client error (4xx) - don't retry
		if resp.StatusCode < 500 {
			return resp, nil
		}

		// Server error (5xx) - retry
		resp.Body.Close()
		lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries+1, lastErr)
}

// convertRecordings converts raw API results, highest score first.
func convertRecordings(results []recordingResult) []Recording {
	recs := make([]Recording, 0, len(results))
	for i := range results {
		r := &results[i]
		rec := Recording{
			ID:     r.ID,
			Title:  r.Title,
			Artist: extractArtist(r.ArtistCredit),
			Length: time.Duration(r.Length) * time.Millisecond,
			Score:  r.Score,
		}
		if len(r.Releases) > 0 {
			rec.ReleaseID = r.Releases[0].ID
			rec.ReleaseTitle = r.Releases[0].Title
		}
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})

	return recs
}

// extractArtist extracts the artist name from artist credits.
func extractArtist(credits []artistCredit) string {
	if len(credits) == 0 {
		return ""
	}

	parts := make([]string, 0, len(credits))
	for _, c := range credits {
		name := c.Name
		if name == "" {
			name = c.Artist.Name
		}
		parts = append(parts, name+c.JoinPhrase)
	}
	return strings.Join(parts, "")
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
