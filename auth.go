package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/llehouerou/scrobbled/internal/config"
	"github.com/llehouerou/scrobbled/internal/errmsg"
	"github.com/llehouerou/scrobbled/internal/lastfm"
	"github.com/llehouerou/scrobbled/internal/state"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	urlStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var errNotConfigured = errors.New("lastfm api_key and api_secret must be set in the config file")

func newIdentity(cfg *config.Config) (lastfm.ClientIdentity, error) {
	if !cfg.HasLastfmConfig() {
		return lastfm.ClientIdentity{}, errNotConfigured
	}
	return lastfm.NewClientIdentity(userAgent(), cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
}

// authFlow links a Last.fm account: it fetches a token, sends the user to
// the confirmation page and exchanges the token for a session key.
type authFlow struct {
	client  *lastfm.Client
	store   state.Interface
	in      io.Reader
	out     io.Writer
	browser func(url string) error
}

func authorize(ctx context.Context, cfg *config.Config, store state.Interface, stdin io.Reader, stdout, stderr io.Writer) int {
	identity, err := newIdentity(cfg)
	if err != nil {
		return fail(stderr, errmsg.OpLastfmIdentity, err)
	}

	flow := authFlow{
		client:  lastfm.New(identity),
		store:   store,
		in:      stdin,
		out:     stdout,
		browser: lastfm.OpenBrowser,
	}
	if err := flow.run(ctx); err != nil {
		fmt.Fprintln(stderr, errStyle.Render(err.Error()))
		return 1
	}
	return 0
}

func (f authFlow) run(ctx context.Context) error {
	token, err := f.client.GetToken(ctx)
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpLastfmToken, err))
	}

	authURL := f.client.AuthURL(token)
	fmt.Fprintln(f.out, titleStyle.Render("Link scrobbled to your Last.fm account"))
	fmt.Fprintln(f.out)
	fmt.Fprintln(f.out, "Open this page and allow access:")
	fmt.Fprintln(f.out, "  "+urlStyle.Render(authURL))
	if err := f.browser(authURL); err != nil {
		fmt.Fprintln(f.out, hintStyle.Render(errmsg.Format(errmsg.OpBrowserOpen, err)))
	}
	fmt.Fprintln(f.out)
	fmt.Fprint(f.out, "Press Enter once access is granted...")

	if err := waitForEnter(ctx, f.in); err != nil {
		return err
	}
	fmt.Fprintln(f.out)

	session, err := f.client.GetSession(ctx, token)
	if err != nil {
		var lfmErr *lastfm.Error
		if errors.As(err, &lfmErr) && lfmErr.Code == lastfm.CodeUnauthorizedToken {
			return errors.New(errmsg.Format(errmsg.OpLastfmSession, errors.New("access was not granted, run `scrobbled auth` again")))
		}
		return errors.New(errmsg.Format(errmsg.OpLastfmSession, err))
	}

	if err := f.store.SaveLastfmSession(ctx, session.Username, string(session.Key)); err != nil {
		return errors.New(errmsg.Format(errmsg.OpSessionSave, err))
	}
	fmt.Fprintln(f.out, okStyle.Render("Linked as "+session.Username))
	return nil
}

// waitForEnter returns once a line is read, the input ends or ctx is done.
func waitForEnter(ctx context.Context, in io.Reader) error {
	read := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(in).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		read <- err
	}()

	select {
	case err := <-read:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func logout(ctx context.Context, store state.Interface, stdout, stderr io.Writer) int {
	existed, err := store.DeleteLastfmSession(ctx)
	if err != nil {
		return fail(stderr, errmsg.OpSessionDelete, err)
	}
	if !existed {
		fmt.Fprintln(stdout, hintStyle.Render("No Last.fm session was stored"))
		return 0
	}
	fmt.Fprintln(stdout, okStyle.Render("Last.fm session removed"))
	return 0
}
