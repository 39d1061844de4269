package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/llehouerou/scrobbled/internal/backend"
	"github.com/llehouerou/scrobbled/internal/config"
	"github.com/llehouerou/scrobbled/internal/enrich"
	"github.com/llehouerou/scrobbled/internal/errmsg"
	"github.com/llehouerou/scrobbled/internal/lastfm"
	"github.com/llehouerou/scrobbled/internal/mpris"
	"github.com/llehouerou/scrobbled/internal/notify"
	"github.com/llehouerou/scrobbled/internal/state"
	"github.com/llehouerou/scrobbled/internal/tracker"
)

const clearTimeout = 2 * time.Second

// daemon polls the player until ctx is done.
func daemon(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) int {
	source, err := mpris.New(mpris.WithPlayer(cfg.MPRIS.Player))
	if err != nil {
		return fail(stderr, errmsg.OpPlayerLookup, err)
	}
	defer source.Close()

	dests, err := destinations(ctx, cfg, logger, state.Open)
	if err != nil {
		return fail(stderr, errmsg.OpInitialize, err)
	}
	if len(dests) == 0 {
		logger.Warn("no destination enabled, only tracking playback")
	}
	dispatcher := backend.NewDispatcher(logger, dests...)

	enricher := enrich.NewProvider(logger, enrich.Options{
		Artwork:      cfg.Enrich.Artwork,
		MusicBrainz:  cfg.Enrich.MusicBrainz,
		UserAgent:    userAgent(),
		LastfmKey:    cfg.Lastfm.APIKey,
		LastfmSecret: cfg.Lastfm.APISecret,
	})

	terminating := &atomic.Bool{}
	t := tracker.New(source, dispatcher, enricher, logger,
		tracker.WithInterval(cfg.PollInterval),
		tracker.WithTerminating(terminating),
	)

	done := make(chan struct{})
	go superviseShutdown(ctx, logger, terminating, done, cfg.ShutdownGrace, os.Exit)

	logger.Info("scrobbled started", "version", version, "destinations", len(dests))
	err = t.Run(ctx)
	close(done)

	clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clearTimeout)
	defer cancel()
	dispatcher.ClearPresence(clearCtx)

	if err != nil {
		logger.Error("poll loop failed", "err", err)
		return 1
	}
	logger.Info("scrobbled stopped")
	return 0
}

// superviseShutdown raises the terminating flag once ctx is done and calls
// exit(1) if done is not closed within grace.
func superviseShutdown(
	ctx context.Context,
	logger *slog.Logger,
	terminating *atomic.Bool,
	done <-chan struct{},
	grace time.Duration,
	exit func(int),
) {
	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	terminating.Store(true)
	logger.Info("shutting down")

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		logger.Error("poll loop did not stop in time", "grace", grace)
		exit(1)
	}
}

// destinations builds the enabled destinations. openStore is only called
// when the Last.fm session key has to come from the state database.
func destinations(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	openStore func(context.Context) (*state.Manager, error),
) ([]backend.Destination, error) {
	var dests []backend.Destination

	if cfg.HasLastfmConfig() {
		client, err := lastfmClient(ctx, cfg, logger, openStore)
		if err != nil {
			return nil, err
		}
		if client != nil {
			dests = append(dests, backend.NewLastFM(logger, client))
		}
	}

	if cfg.HasListenBrainzConfig() {
		dests = append(dests, backend.NewListenBrainz(logger, cfg.ListenBrainz.URL, cfg.ListenBrainz.Token))
	}

	if cfg.Presence.Enabled {
		notifier, err := notify.New()
		if err != nil {
			logger.Warn(errmsg.Format(errmsg.OpPresenceSetup, err))
		} else {
			dests = append(dests, backend.NewPresence(logger, notifier))
		}
	}

	return dests, nil
}

// lastfmClient returns nil when no session is linked yet.
func lastfmClient(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	openStore func(context.Context) (*state.Manager, error),
) (*lastfm.AuthorizedClient, error) {
	identity, err := newIdentity(cfg)
	if err != nil {
		return nil, err
	}

	key := lastfm.SessionKey(cfg.Lastfm.SessionKey)
	if key == "" {
		store, err := openStore(ctx)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		key, err = storedSessionKey(ctx, store)
		if err != nil {
			return nil, err
		}
	}
	if key == "" {
		logger.Warn("Last.fm is configured but not linked, run `scrobbled auth`")
		return nil, nil //nolint:nilnil // nil client means not linked, not an error
	}
	return lastfm.NewAuthorizedClient(identity, key), nil
}

func storedSessionKey(ctx context.Context, store state.Interface) (lastfm.SessionKey, error) {
	session, err := store.GetLastfmSession(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", nil
	}
	return lastfm.SessionKey(session.SessionKey), nil
}
