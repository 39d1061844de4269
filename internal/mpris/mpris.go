//go:build linux

package mpris

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/llehouerou/scrobbled/internal/playback"
)

const (
	objectPath      = "/org/mpris/MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"

	errServiceUnknown = "org.freedesktop.DBus.Error.ServiceUnknown"
	errNameHasNoOwner = "org.freedesktop.DBus.Error.NameHasNoOwner"
)

// Option configures a Source.
type Option func(*Source)

// WithPlayer restricts polling to players whose bus name starts with
// org.mpris.MediaPlayer2.<name>. An empty name picks the first player.
func WithPlayer(name string) Option {
	return func(s *Source) {
		s.player = name
	}
}

// Source implements playback.Source on the session bus.
type Source struct {
	conn   *dbus.Conn
	player string

	mu      sync.Mutex
	busName string
}

// New connects to the session bus.
func New(opts ...Option) (*Source, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	s := &Source{conn: conn}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the bus connection.
func (s *Source) Close() error {
	return s.conn.Close()
}

// ApplicationData reads the playback status and position.
func (s *Source) ApplicationData(ctx context.Context) (playback.Snapshot, error) {
	props, err := s.properties(ctx)
	if err != nil {
		return playback.Snapshot{}, err
	}
	return decodeSnapshot(props)
}

// CurrentTrack reads the metadata of the loaded track.
func (s *Source) CurrentTrack(ctx context.Context) (playback.Track, error) {
	name, err := s.resolve(ctx)
	if err != nil {
		return playback.Track{}, err
	}

	var v dbus.Variant
	err = s.conn.Object(name, objectPath).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, playerInterface, "Metadata").
		Store(&v)
	if err != nil {
		return playback.Track{}, s.callFailed("get metadata", err)
	}

	meta, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return playback.Track{}, fmt.Errorf("%w: metadata is %s", playback.ErrDeserialization, v.Signature())
	}
	return decodeTrack(meta)
}

func (s *Source) properties(ctx context.Context) (map[string]dbus.Variant, error) {
	name, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	var props map[string]dbus.Variant
	err = s.conn.Object(name, objectPath).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.GetAll", 0, playerInterface).
		Store(&props)
	if err != nil {
		return nil, s.callFailed("get properties", err)
	}
	return props, nil
}

// resolve returns the bus name of the polled player, looking it up again
// after the previous one went away.
func (s *Source) resolve(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busName != "" {
		return s.busName, nil
	}

	var names []string
	err := s.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return "", fmt.Errorf("%w: list names: %w", playback.ErrAppCommandFailed, err)
	}

	name, ok := pickPlayer(names, s.player)
	if !ok {
		return "", playback.ErrNotPlaying
	}
	s.busName = name
	return name, nil
}

// callFailed maps a D-Bus error. A vanished player is reported as not
// playing and forgotten so the next poll looks for it again.
func (s *Source) callFailed(op string, err error) error {
	switch errorName(err) {
	case errServiceUnknown, errNameHasNoOwner:
		s.mu.Lock()
		s.busName = ""
		s.mu.Unlock()
		return playback.ErrNotPlaying
	}
	return fmt.Errorf("%w: %s: %w", playback.ErrAppCommandFailed, op, err)
}

func errorName(err error) string {
	var e dbus.Error
	if errors.As(err, &e) {
		return e.Name
	}
	var pe *dbus.Error
	if errors.As(err, &pe) {
		return pe.Name
	}
	return ""
}
