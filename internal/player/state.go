package player

// State represents the element state machine.
//
//	┌──────────┐  load   ┌──────────┐  play   ┌──────────┐
//	│ Unloaded │ ───────▶│  Paused  │ ───────▶│  Playing │
//	└──────────┘         └──────────┘ ◀───────└──────────┘
//	                          ▲          pause       │
//	                          │ seek / play          │ end of stream
//	                          │                      ▼
//	                          │                 ┌──────────┐
//	                          └─────────────────│   Ended  │
//	                                            └──────────┘
//
// Close returns any state to Unloaded.
type State int

const (
	Unloaded State = iota
	Paused
	Playing
	Ended
)

// String returns the state name for debugging.
func (s State) String() string {
	switch s {
	case Unloaded:
		return "Unloaded"
	case Paused:
		return "Paused"
	case Playing:
		return "Playing"
	case Ended:
		return "Ended"
	default:
		return "Unknown"
	}
}

// IsLoaded returns true once media data is available.
func (s State) IsLoaded() bool {
	return s != Unloaded
}

// CanPlay returns true if the state allows starting playback.
func (s State) CanPlay() bool {
	return s == Paused || s == Ended
}

// CanPause returns true if the state allows pausing.
func (s State) CanPause() bool {
	return s == Playing
}
