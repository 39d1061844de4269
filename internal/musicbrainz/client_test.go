//nolint:bodyclose // Test file uses http.NoBody which doesn't require closing
package musicbrainz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/synctest"
	"time"
)

func TestClient_WaitForRateLimit_FirstRequest(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := &Client{}

		start := time.Now()
		c.waitForRateLimit()
		elapsed := time.Since(start)

		// First request should not wait
		if elapsed > 10*time.Millisecond {
			t.Errorf("first request waited %v, expected no wait", elapsed)
		}
	})
}

func TestClient_WaitForRateLimit_EnforcesRateLimit(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := &Client{}

		// First request
		c.waitForRateLimit()

		// Immediate second request should wait ~1 second
		start := time.Now()
		c.waitForRateLimit()
		elapsed := time.Since(start)

		if elapsed < 900*time.Millisecond {
			t.Errorf("second request only waited %v, expected ~1s", elapsed)
		}
	})
}

func TestClient_WaitForRateLimit_NoWaitAfterDelay(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := &Client{}

		// First request
		c.waitForRateLimit()

		// Wait more than rate limit
		time.Sleep(rateLimitDur + 100*time.Millisecond)

		// Second request should not wait
		start := time.Now()
		c.waitForRateLimit()
		elapsed := time.Since(start)

		if elapsed > 10*time.Millisecond {
			t.Errorf("request after delay waited %v, expected no wait", elapsed)
		}
	})
}

func TestClient_WaitForRateLimit_MultipleRequests(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := &Client{}

		start := time.Now()

		// Make 5 requests
		for range 5 {
			c.waitForRateLimit()
		}

		elapsed := time.Since(start)

		// Should take at least 4 seconds (first is instant, then 4 waits of 1s each)
		if elapsed < 4*time.Second {
			t.Errorf("5 requests took %v, expected at least 4s", elapsed)
		}
	})
}

// mockTransport is a mock http.RoundTripper for testing.
type mockTransport struct {
	responses []*http.Response
	errors    []error
	callCount int
}

func (m *mockTransport) RoundTrip(*http.Request) (*http.Response, error) {
	idx := m.callCount
	m.callCount++

	if idx < len(m.errors) && m.errors[idx] != nil {
		return nil, m.errors[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return nil, errors.New("no more responses configured")
}

func newMockResponse(statusCode int) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       http.NoBody,
	}
}

func TestClient_DoRequestWithRetry_Success(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{
			responses: []*http.Response{newMockResponse(http.StatusOK)},
		}
		c := &Client{
			httpClient: &http.Client{Transport: mock},
		}

		req, _ := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
		resp, err := c.doRequestWithRetry(req)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if mock.callCount != 1 {
			t.Errorf("callCount = %d, want 1", mock.callCount)
		}
	})
}

func TestClient_DoRequestWithRetry_RetriesOn500(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{
			responses: []*http.Response{
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusOK), // Success on 3rd attempt
			},
		}
		c := &Client{
			httpClient: &http.Client{Transport: mock},
		}

		start := time.Now()
		req, _ := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
		resp, err := c.doRequestWithRetry(req)
		elapsed := time.Since(start)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if mock.callCount != 3 {
			t.Errorf("callCount = %d, want 3", mock.callCount)
		}

		// Should have waited: 2s (first retry) + 4s (second retry) = 6s minimum
		// Plus rate limit waits after each retry
		if elapsed < 6*time.Second {
			t.Errorf("elapsed = %v, expected at least 6s for backoff", elapsed)
		}
	})
}

func TestClient_DoRequestWithRetry_ExhaustsRetries(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{
			responses: []*http.Response{
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusInternalServerError), // All 4 attempts fail
			},
		}
		c := &Client{
			httpClient: &http.Client{Transport: mock},
		}

		req, _ := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
		resp, err := c.doRequestWithRetry(req)

		if err == nil {
			t.Fatal("expected error after exhausting retries")
		}
		if resp != nil {
			t.Error("expected nil response after exhausting retries")
		}
		if mock.callCount != 4 {
			t.Errorf("callCount = %d, want 4 (initial + 3 retries)", mock.callCount)
		}
	})
}

func TestClient_DoRequestWithRetry_NoRetryOn4xx(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{
			responses: []*http.Response{newMockResponse(http.StatusNotFound)},
		}
		c := &Client{
			httpClient: &http.Client{Transport: mock},
		}

		req, _ := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
		resp, err := c.doRequestWithRetry(req)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
		if mock.callCount != 1 {
			t.Errorf("callCount = %d, want 1 (no retry on 4xx)", mock.callCount)
		}
	})
}

func TestClient_DoRequestWithRetry_RetriesOnNetworkError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{
			errors: []error{
				errors.New("connection refused"),
				errors.New("timeout"),
				nil, // Success on 3rd
			},
			responses: []*http.Response{
				nil,
				nil,
				newMockResponse(http.StatusOK),
			},
		}
		c := &Client{
			httpClient: &http.Client{Transport: mock},
		}

		req, _ := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
		resp, err := c.doRequestWithRetry(req)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if mock.callCount != 3 {
			t.Errorf("callCount = %d, want 3", mock.callCount)
		}
	})
}

func TestClient_DoRequestWithRetry_BackoffTiming(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var callTimes []time.Time
		mock := &mockTransport{
			responses: []*http.Response{
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusInternalServerError),
			},
		}

		// Wrap to record call times
		originalTransport := mock
		c := &Client{
			httpClient: &http.Client{
				Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
					callTimes = append(callTimes, time.Now())
					return originalTransport.RoundTrip(req)
				}),
			},
		}

		req, _ := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
		_, _ = c.doRequestWithRetry(req)

		if len(callTimes) != 4 {
			t.Fatalf("expected 4 calls, got %d", len(callTimes))
		}

		// Check delays between calls (should be ~2s, ~4s, ~8s + rate limit)
		// First retry: 2s delay
		delay1 := callTimes[1].Sub(callTimes[0])
		if delay1 < 2*time.Second {
			t.Errorf("first retry delay = %v, want >= 2s", delay1)
		}

		// Second retry: 4s delay
		delay2 := callTimes[2].Sub(callTimes[1])
		if delay2 < 4*time.Second {
			t.Errorf("second retry delay = %v, want >= 4s", delay2)
		}

		// Third retry: 8s delay
		delay3 := callTimes[3].Sub(callTimes[2])
		if delay3 < 8*time.Second {
			t.Errorf("third retry delay = %v, want >= 8s", delay3)
		}
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := NewClient("scrobbled-test/0.1")
	c.baseURL = server.URL
	c.coverArtURL = server.URL
	return c
}

const recordingSearchBody = `{"recordings":[
	{"id":"low","title":"Song","score":60,"length":200000,
	 "artist-credit":[{"name":"Artist","joinphrase":""}]},
	{"id":"wrong-length","title":"Song","score":100,"length":420000,
	 "artist-credit":[{"name":"Artist","joinphrase":""}]},
	{"id":"916b242d-d439-4ae4-a439-556eef99c06e","title":"Song","score":95,"length":201500,
	 "artist-credit":[{"name":"Artist","joinphrase":" feat. "},{"artist":{"name":"Guest"}}],
	 "releases":[{"id":"rel-1","title":"Album"}]}
]}`

func TestClient_SearchRecordings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recording" {
			t.Errorf("path = %q, want /recording", r.URL.Path)
		}
		if got := r.Header.Get("User-Agent"); got != "scrobbled-test/0.1" {
			t.Errorf("User-Agent = %q", got)
		}
		q := r.URL.Query().Get("query")
		if !strings.Contains(q, `recording:"Say \"Hi\""`) || !strings.Contains(q, `artist:"Artist"`) {
			t.Errorf("query = %q", q)
		}
		if strings.Contains(q, "release:") {
			t.Errorf("query should not filter by release: %q", q)
		}
		_, _ = w.Write([]byte(recordingSearchBody))
	})

	recs, err := c.SearchRecordings(context.Background(), RecordingQuery{Artist: "Artist", Title: `Say "Hi"`})
	if err != nil {
		t.Fatalf("SearchRecordings() error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d recordings, want 3", len(recs))
	}
	if recs[0].ID != "wrong-length" || recs[2].ID != "low" {
		t.Errorf("recordings not sorted by score: %+v", recs)
	}
	if recs[1].Artist != "Artist feat. Guest" {
		t.Errorf("Artist = %q, want %q", recs[1].Artist, "Artist feat. Guest")
	}
	if recs[1].ReleaseID != "rel-1" || recs[1].Length != 201500*time.Millisecond {
		t.Errorf("unexpected recording: %+v", recs[1])
	}
}

func TestClient_LookupRecording_SkipsLengthMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(recordingSearchBody))
	})

	rec, ok, err := c.LookupRecording(context.Background(), RecordingQuery{
		Artist:   "Artist",
		Title:    "Song",
		Duration: 200 * time.Second,
	})
	if err != nil {
		t.Fatalf("LookupRecording() error: %v", err)
	}
	if !ok {
		t.Fatal("LookupRecording() found no match")
	}
	if rec.ID != "916b242d-d439-4ae4-a439-556eef99c06e" {
		t.Errorf("ID = %q", rec.ID)
	}
}

func TestClient_LookupRecording_NoConfidentMatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"recordings":[{"id":"x","title":"Song","score":50}]}`))
	})

	_, ok, err := c.LookupRecording(context.Background(), RecordingQuery{Artist: "A", Title: "Song"})
	if err != nil {
		t.Fatalf("LookupRecording() error: %v", err)
	}
	if ok {
		t.Error("LookupRecording() should not match a low score")
	}
}

func TestClient_SearchRecordings_ClientError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad query"))
	})

	_, err := c.SearchRecordings(context.Background(), RecordingQuery{Artist: "A", Title: "T", Album: "B"})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("error = %v, want status 400", err)
	}
}

func TestClient_GetCoverArt(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release/rel-1/front-250":
			_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF})
		default:
			http.NotFound(w, r)
		}
	})

	data, err := c.GetCoverArt(context.Background(), "rel-1")
	if err != nil {
		t.Fatalf("GetCoverArt() error: %v", err)
	}
	if len(data) != 3 {
		t.Errorf("got %d bytes, want 3", len(data))
	}

	data, err = c.GetCoverArt(context.Background(), "missing")
	if err != nil || data != nil {
		t.Errorf("GetCoverArt(missing) = %v, %v, want nil, nil", data, err)
	}
}
