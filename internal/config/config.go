package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// AppName names the config directory.
const AppName = "scrobbled"

const (
	defaultPollInterval    = time.Second
	defaultShutdownGrace   = time.Second
	defaultListenBrainzURL = "https://api.listenbrainz.org"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	PollInterval  time.Duration `koanf:"poll_interval"`
	ShutdownGrace time.Duration `koanf:"shutdown_grace"`
	LogLevel      string        `koanf:"log_level"` // "debug", "info", "warn" or "error"
	LogFile       string        `koanf:"log_file"`  // empty means stderr

	// Last.fm scrobbling (enabled when api_key and api_secret are set)
	Lastfm LastfmConfig `koanf:"lastfm"`

	ListenBrainz ListenBrainzConfig `koanf:"listenbrainz"`

	// Desktop "now playing" notification
	Presence PresenceConfig `koanf:"presence"`

	MPRIS MPRISConfig `koanf:"mpris"`

	Enrich EnrichConfig `koanf:"enrich"`

	// Files lists the config files that were loaded, lowest priority first.
	Files []string `koanf:"-"`
}

// LastfmConfig holds Last.fm scrobbling configuration.
type LastfmConfig struct {
	Enabled    bool   `koanf:"enabled"`
	APIKey     string `koanf:"api_key"`
	APISecret  string `koanf:"api_secret"`
	SessionKey string `koanf:"session_key"` // optional, otherwise read from the state db
}

// ListenBrainzConfig holds ListenBrainz submission configuration.
type ListenBrainzConfig struct {
	Enabled bool   `koanf:"enabled"`
	Token   string `koanf:"token"`
	URL     string `koanf:"url"`
}

// PresenceConfig holds the desktop presence configuration.
type PresenceConfig struct {
	Enabled bool `koanf:"enabled"`
}

// MPRISConfig selects the polled player.
type MPRISConfig struct {
	Player string `koanf:"player"` // bus name suffix, e.g. "spotify"
}

// EnrichConfig toggles the enrichment sources.
type EnrichConfig struct {
	Artwork     bool `koanf:"artwork"`
	MusicBrainz bool `koanf:"musicbrainz"`
}

// Location is a candidate config file.
type Location struct {
	Path   string
	Origin string
	Exists bool
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		PollInterval:  defaultPollInterval,
		ShutdownGrace: defaultShutdownGrace,
		LogLevel:      "info",
		Lastfm:        LastfmConfig{Enabled: true},
		ListenBrainz:  ListenBrainzConfig{URL: defaultListenBrainzURL},
		Presence:      PresenceConfig{Enabled: true},
		Enrich:        EnrichConfig{Artwork: true, MusicBrainz: true},
	}
}

// Load reads the config files. When explicit is set it is the only file
// read and it must exist; otherwise every existing default location is
// read in order (last wins).
func Load(explicit string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	locations, err := Locations(explicit)
	if err != nil {
		return nil, err
	}
	for _, loc := range locations {
		if !loc.Exists {
			continue
		}
		if err := k.Load(file.Provider(loc.Path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", loc.Path, err)
		}
		cfg.Files = append(cfg.Files, loc.Path)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LogFile != "" {
		cfg.LogFile = expandPath(cfg.LogFile)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.ListenBrainz.URL = strings.TrimSuffix(cfg.ListenBrainz.URL, "/")
	if cfg.ListenBrainz.URL == "" {
		cfg.ListenBrainz.URL = defaultListenBrainzURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Locations returns the config files Load considers, in priority order.
func Locations(explicit string) ([]Location, error) {
	if explicit != "" {
		path := expandPath(explicit)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		return []Location{{Path: path, Origin: "--config flag", Exists: true}}, nil
	}

	origins := []string{"XDG config directory", "working directory"}
	paths := getConfigPaths()
	locations := make([]Location, 0, len(paths))
	for i, path := range paths {
		_, err := os.Stat(path)
		locations = append(locations, Location{Path: path, Origin: origins[i], Exists: err == nil})
	}
	return locations, nil
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/scrobbled/config.toml
		filepath.Join(xdg.ConfigHome, AppName, "config.toml"),
		// 2. ./config.toml (pwd, highest priority)
		"config.toml",
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalid)
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("%w: shutdown_grace must be positive", ErrInvalid)
	}
	if c.ListenBrainz.Enabled && c.ListenBrainz.Token == "" {
		return fmt.Errorf("%w: listenbrainz is enabled without a token", ErrInvalid)
	}
	return nil
}

// HasLastfmConfig returns true if Last.fm scrobbling is configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.Enabled && c.Lastfm.APIKey != "" && c.Lastfm.APISecret != ""
}

// HasListenBrainzConfig returns true if ListenBrainz submission is configured.
func (c *Config) HasListenBrainzConfig() bool {
	return c.ListenBrainz.Enabled && c.ListenBrainz.Token != ""
}
