package lastfm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
)

// AuthURL is the page where a user confirms a token.
const AuthURL = "https://www.last.fm/api/auth/"

// Token is a short-lived authorization token. It is consumed by exactly one
// GetSession call.
type Token string

// Session is the result of exchanging a confirmed token.
type Session struct {
	Username   string
	Key        SessionKey
	Subscriber bool
}

type tokenResponse struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	Session struct {
		Name       string  `json:"name"`
		Key        string  `json:"key"`
		Subscriber flexInt `json:"subscriber"`
	} `json:"session"`
}

// GetToken requests an authorization token. The call is unsigned and only
// carries the api key.
func (c *Client) GetToken(ctx context.Context) (Token, error) {
	params := NewParams()
	params.Set(paramMethod, "auth.getToken")
	params.Set(paramAPIKey, c.t.identity.Key)

	var resp tokenResponse
	if err := c.t.call(ctx, http.MethodGet, params, &resp); err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	if resp.Token == "" {
		return "", errors.New("get token: empty token in response")
	}
	return Token(resp.Token), nil
}

// AuthURL returns the URL a user must visit to confirm token.
func (c *Client) AuthURL(token Token) string {
	q := url.Values{}
	q.Set("api_key", c.t.identity.Key)
	q.Set("token", string(token))
	return AuthURL + "?" + q.Encode()
}

// GetSession exchanges a user-confirmed token for a session key.
func (c *Client) GetSession(ctx context.Context, token Token) (Session, error) {
	params := NewParams()
	params.Set(paramMethod, "auth.getSession")
	params.Set(paramAPIKey, c.t.identity.Key)
	params.Set("token", string(token))
	params.Sign(c.t.identity.Secret)

	var resp sessionResponse
	if err := c.t.call(ctx, http.MethodGet, params, &resp); err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	if resp.Session.Key == "" {
		return Session{}, errors.New("get session: empty session key in response")
	}
	return Session{
		Username:   resp.Session.Name,
		Key:        SessionKey(resp.Session.Key),
		Subscriber: resp.Session.Subscriber != 0,
	}, nil
}

// OpenBrowser opens the given URL in the default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
