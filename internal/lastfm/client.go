package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	// BaseURL is the single endpoint every call is sent to.
	BaseURL = "https://ws.audioscrobbler.com/2.0/"

	defaultTimeout  = 10 * time.Second
	maxResponseSize = 1 << 20
)

var credentialPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// ClientIdentity identifies the application to the service.
type ClientIdentity struct {
	UserAgent string
	Key       string
	Secret    string
}

// NewClientIdentity validates and returns an identity. Key and secret must be
// the 32 character hex strings issued by Last.fm.
func NewClientIdentity(userAgent, key, secret string) (ClientIdentity, error) {
	if userAgent == "" {
		return ClientIdentity{}, errors.New("empty user agent")
	}
	if !credentialPattern.MatchString(key) {
		return ClientIdentity{}, fmt.Errorf("invalid api key %q", key)
	}
	if !credentialPattern.MatchString(secret) {
		return ClientIdentity{}, errors.New("invalid api secret")
	}
	return ClientIdentity{UserAgent: userAgent, Key: key, Secret: secret}, nil
}

// SessionKey is the long-lived credential obtained from auth.getSession.
type SessionKey string

// Option customizes a client.
type Option func(*transport)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *transport) {
		t.http = c
	}
}

// WithBaseURL points the client at another endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(t *transport) {
		t.baseURL = u
	}
}

// Client is a client that has not been authorized by a user. It can only
// run the authorization handshake.
type Client struct {
	t transport
}

// New creates an unauthorized client.
func New(identity ClientIdentity, opts ...Option) *Client {
	return &Client{t: newTransport(identity, opts)}
}

// Identity returns the identity the client was built with.
func (c *Client) Identity() ClientIdentity {
	return c.t.identity
}

// Authorize converts the client into an authorized one. The receiver should
// not be used afterwards.
func (c *Client) Authorize(sessionKey SessionKey) *AuthorizedClient {
	if sessionKey == "" {
		panic("lastfm: authorize with empty session key")
	}
	return &AuthorizedClient{t: c.t, sessionKey: sessionKey}
}

// AuthorizedClient is a client holding a session key. Only it can submit
// scrobbles and now-playing updates.
type AuthorizedClient struct {
	t          transport
	sessionKey SessionKey
}

// NewAuthorizedClient creates a client from a previously stored session key.
func NewAuthorizedClient(identity ClientIdentity, sessionKey SessionKey, opts ...Option) *AuthorizedClient {
	return New(identity, opts...).Authorize(sessionKey)
}

// SessionKey returns the session key used to sign requests.
func (c *AuthorizedClient) SessionKey() SessionKey {
	return c.sessionKey
}

// Identity returns the identity the client was built with.
func (c *AuthorizedClient) Identity() ClientIdentity {
	return c.t.identity
}

// callAuthorized signs and posts a call that requires a session.
func (c *AuthorizedClient) callAuthorized(ctx context.Context, method string, params *Params, out any) error {
	params.Set(paramSession, string(c.sessionKey))
	params.Set(paramMethod, method)
	params.Set(paramAPIKey, c.t.identity.Key)
	params.Sign(c.t.identity.Secret)
	return c.t.call(ctx, http.MethodPost, params, out)
}

type transport struct {
	identity ClientIdentity
	http     *http.Client
	baseURL  string
}

func newTransport(identity ClientIdentity, opts []Option) transport {
	t := transport{
		identity: identity,
		http:     &http.Client{Timeout: defaultTimeout},
		baseURL:  BaseURL,
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// errorBody is the shape of a JSON error response.
type errorBody struct {
	Error   Code   `json:"error"`
	Message string `json:"message"`
}

// call sends params and decodes the JSON response into out (if non-nil).
// Signing, when needed, must already have happened.
func (t *transport) call(ctx context.Context, httpMethod string, params *Params, out any) error {
	params.Set(paramFormat, "json")
	encoded := params.Values().Encode()

	var (
		req *http.Request
		err error
	)
	if httpMethod == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+encoded, http.NoBody)
	} else {
		req, err = http.NewRequestWithContext(ctx, httpMethod, t.baseURL, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", t.identity.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var e errorBody
	if json.Unmarshal(body, &e) == nil && e.Error != 0 {
		return &Error{Code: e.Error, Message: e.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
