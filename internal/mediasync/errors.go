package mediasync

import (
	"context"
	"errors"
	"fmt"

	"github.com/llehouerou/framesync/internal/timecode"
)

// Seek outcomes.
var (
	ErrVideoNotLoaded          = errors.New("aborted: video not loaded")
	ErrSeekTimeout             = errors.New("seek timeout")
	ErrAbortedBySubsequentSeek = errors.New("aborted by subsequent seek")
	ErrResourceReplaced        = errors.New("aborted: media resource replaced")
	ErrDestroyed               = errors.New("aborted: controller destroyed")
)

// Play outcomes.
var (
	ErrPlayTimeout                   = errors.New("play timeout")
	ErrAbortedByActivePlayingRequest = errors.New("aborted by active playing request")
	ErrAbortedBySeekToTimeRequest    = errors.New("aborted by seek to time request")
	ErrPlay                          = errors.New("play error")
)

// ErrUnknownSyncState signals a corrupted sync state machine.
var ErrUnknownSyncState = errors.New("unknown sync state")

// SeekAbortedError is returned by a seek superseded by a newer one.
type SeekAbortedError struct {
	Code         OperationCode
	SupersededBy OperationCode
}

func (e *SeekAbortedError) Error() string {
	return fmt.Sprintf("%v: operation %d superseded by %d", ErrAbortedBySubsequentSeek, e.Code, e.SupersededBy)
}

func (e *SeekAbortedError) Is(target error) bool {
	return target == ErrAbortedBySubsequentSeek
}

// PlayError wraps a failure reported by the media element when asked to
// play.
type PlayError struct {
	Err error
}

func (e *PlayError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPlay, e.Err)
}

func (e *PlayError) Unwrap() []error {
	return []error{ErrPlay, e.Err}
}

// Outcome names the result of a seek or play for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSeekTimeout), errors.Is(err, ErrPlayTimeout):
		return "timeout"
	case errors.Is(err, ErrAbortedBySubsequentSeek):
		return "aborted_by_subsequent_seek"
	case errors.Is(err, ErrVideoNotLoaded):
		return "aborted_video_not_loaded"
	case errors.Is(err, ErrAbortedByActivePlayingRequest):
		return "aborted_by_active_playing_request"
	case errors.Is(err, ErrAbortedBySeekToTimeRequest):
		return "aborted_by_seek_to_time_request"
	case errors.Is(err, ErrPlay):
		return "play_error"
	case errors.Is(err, timecode.ErrLocateTimeout):
		return "locate_timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
