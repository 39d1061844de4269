// internal/playback/state.go
package playback

// State is the transport state reported by the player.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
	StateFastForwarding
	StateRewinding
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateFastForwarding:
		return "FastForwarding"
	case StateRewinding:
		return "Rewinding"
	default:
		return "Unknown"
	}
}
