package mediasync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llehouerou/framesync/internal/timecode"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{ErrSeekTimeout, "timeout"},
		{ErrPlayTimeout, "timeout"},
		{&SeekAbortedError{Code: 1, SupersededBy: 2}, "aborted_by_subsequent_seek"},
		{ErrVideoNotLoaded, "aborted_video_not_loaded"},
		{ErrAbortedByActivePlayingRequest, "aborted_by_active_playing_request"},
		{ErrAbortedBySeekToTimeRequest, "aborted_by_seek_to_time_request"},
		{&PlayError{Err: errors.New("denied")}, "play_error"},
		{fmt.Errorf("locate: %w", &timecode.LocateError{Target: 3}), "locate_timeout"},
		{context.Canceled, "canceled"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}

func TestSeekAbortedError(t *testing.T) {
	err := fmt.Errorf("sync: %w", &SeekAbortedError{Code: 10, SupersededBy: 11})

	assert.ErrorIs(t, err, ErrAbortedBySubsequentSeek)
	assert.NotErrorIs(t, err, ErrSeekTimeout)
	assert.Contains(t, err.Error(), "superseded by 11")
}

func TestPlayError_Unwrap(t *testing.T) {
	cause := errors.New("gesture required")
	err := &PlayError{Err: cause}

	assert.ErrorIs(t, err, ErrPlay)
	assert.ErrorIs(t, err, cause)
}

func TestNewOperationCode_StrictlyIncreasing(t *testing.T) {
	prev := NewOperationCode()
	for range 1000 {
		next := NewOperationCode()
		assert.Greater(t, next, prev)
		prev = next
	}
}
