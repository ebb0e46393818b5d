package orchestrator

import (
	"time"

	"github.com/llehouerou/framesync/internal/mediasync"
)

// Action is what a tick did to the media.
type Action string

const (
	// ActionIdle: the timeline is outside the clip and the media is
	// already stopped.
	ActionIdle Action = "idle"
	// ActionStop: the media was stopped because the timeline left the
	// clip.
	ActionStop Action = "stop"
	// ActionPlay: playback was started in the background.
	ActionPlay Action = "play"
	// ActionSync: SyncToFrame ran.
	ActionSync Action = "sync"
	// ActionSeek: a frame-exact seek runs in the background.
	ActionSeek Action = "seek"
)

// Report describes one tick, for diagnostics and telemetry.
type Report struct {
	At           time.Time
	TimelineTime float64
	MediaTime    float64
	Speed        float64
	Frame        int
	Action       Action
	Sync         mediasync.SyncResult
	Err          error
}

// Drift is the requested frame minus the frame shown after the tick.
// It is only meaningful for ActionSync.
func (r Report) Drift() int {
	return r.Sync.ResolvedFrameNumber - r.Sync.ActualFrameNumber
}

// ErrorEvent is emitted when a background operation fails.
type ErrorEvent struct {
	Operation string // "play" or "seek"
	Frame     int
	Err       error
}
