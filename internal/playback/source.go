package playback

import (
	"context"
	"errors"
)

// Poll errors. Sources wrap these so callers can match with errors.Is.
var (
	ErrNoData           = errors.New("no data from player")
	ErrNotPlaying       = errors.New("player is not playing")
	ErrDeserialization  = errors.New("cannot decode player response")
	ErrAppCommandFailed = errors.New("player command failed")
)

// Source samples the media player.
type Source interface {
	ApplicationData(ctx context.Context) (Snapshot, error)
	CurrentTrack(ctx context.Context) (Track, error)
}
