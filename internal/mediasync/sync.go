package mediasync

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/llehouerou/framesync/internal/media"
)

// SyncState is the state of the soft-sync controller.
type SyncState int

const (
	StatePolling SyncState = iota
	StateMeasuring
	StateAdjusting
	StateSeeking
	// StateAbortedBySubsequentSeekToTime and
	// StateAbortedBySubsequentSyncToFrame are only reported for the tick
	// whose hard seek was superseded.
	StateAbortedBySubsequentSeekToTime
	StateAbortedBySubsequentSyncToFrame
)

func (s SyncState) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateMeasuring:
		return "measuring"
	case StateAdjusting:
		return "adjusting"
	case StateSeeking:
		return "seeking"
	case StateAbortedBySubsequentSeekToTime:
		return "abortedBySubsequentSeekToTime"
	case StateAbortedBySubsequentSyncToFrame:
		return "abortedBySubsequentSyncToFrame"
	default:
		return fmt.Sprintf("SyncState(%d)", int(s))
	}
}

// SyncResult describes one SyncToFrame tick.
type SyncResult struct {
	// ActualFrameNumber is the frame estimated from the element position
	// after the tick.
	ActualFrameNumber int
	// ResolvedFrameNumber is the requested frame clamped to the media.
	ResolvedFrameNumber int
	Step                SyncState
}

// offsetWindow collects per-tick frame offsets until full.
type offsetWindow struct {
	size    int
	samples []int
}

func newOffsetWindow(size int) *offsetWindow {
	return &offsetWindow{size: size, samples: make([]int, 0, size)}
}

// push adds an offset and reports whether the window is full.
func (w *offsetWindow) push(offset int) bool {
	w.samples = append(w.samples, offset)
	return len(w.samples) >= w.size
}

// drain empties the window and returns the average offset.
func (w *offsetWindow) drain() float64 {
	if len(w.samples) == 0 {
		return 0
	}
	sum := 0
	for _, s := range w.samples {
		sum += s
	}
	avg := float64(sum) / float64(len(w.samples))
	w.samples = w.samples[:0]
	return avg
}

func (w *offsetWindow) reset() {
	w.samples = w.samples[:0]
}

// needsHardSeek reports whether offset, in frames, is too large for a
// rate correction: the media is more than MediaBehindThresholdSeconds
// behind the request (positive offset), more than
// MediaAheadThresholdSeconds ahead of it (negative offset), or the
// timeline is paused with any offset.
func needsHardSeek(offset int, framerate float64, timelinePaused bool) bool {
	o := float64(offset)
	return o > framerate*MediaBehindThresholdSeconds ||
		-o > framerate*MediaAheadThresholdSeconds ||
		(timelinePaused && offset != 0)
}

// rateDelta is the proportional correction for an average offset,
// bounded to maxAdjustment of the nominal rate.
func rateDelta(avgOffset, maxAdjustment, nominal float64) float64 {
	limit := maxAdjustment * nominal
	return min(max(avgOffset*maxAdjustment, -limit), limit)
}

// State returns the current soft-sync state.
func (c *Controller) State() SyncState {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()
	return c.state
}

// SyncToFrame runs one tick of the closed-loop controller towards frame.
// It must be called once per rendered tick of the host timeline.
//
// Small offsets are averaged over a few ticks and closed by holding a
// corrected playback rate. Large offsets, or any offset while the
// timeline is paused, trigger a hard seek; SyncToFrame then blocks until
// the seek finishes. A hard seek superseded by another seek is reported
// through Step, not as an error.
func (c *Controller) SyncToFrame(ctx context.Context, frame int) (SyncResult, error) {
	c.syncMu.Lock()

	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		c.syncMu.Unlock()
		return SyncResult{Step: StatePolling}, ErrVideoNotLoaded
	}
	el := c.el
	resolved := c.clampFrameLocked(frame)
	nominal := c.nominalRate
	c.mu.Unlock()

	estimated := c.estimateFrame(el)
	offset := resolved - estimated
	timelinePaused := c.timelinePaused(el)

	if c.syncSeeking {
		// a newer paused frame replaces the in-flight seek, anything else
		// waits for it
		if !timelinePaused || resolved == c.syncSeekFrame {
			c.syncMu.Unlock()
			return SyncResult{
				ActualFrameNumber:   estimated,
				ResolvedFrameNumber: resolved,
				Step:                StateSeeking,
			}, nil
		}
		return c.hardSeek(ctx, el, resolved, nominal)
	}
	if needsHardSeek(offset, c.conv.Framerate, timelinePaused) {
		return c.hardSeek(ctx, el, resolved, nominal)
	}

	err := c.step(offset, nominal)
	step := c.state
	c.syncMu.Unlock()

	actual := c.estimateFrame(el)
	if err != nil {
		return SyncResult{ActualFrameNumber: actual, ResolvedFrameNumber: resolved, Step: step}, err
	}
	c.forwardAudio(actual)
	return SyncResult{ActualFrameNumber: actual, ResolvedFrameNumber: resolved, Step: step}, nil
}

// step advances the soft-sync state machine. Called with syncMu held.
func (c *Controller) step(offset int, nominal float64) error {
	switch c.state {
	case StateSeeking, StateAbortedBySubsequentSeekToTime, StateAbortedBySubsequentSyncToFrame:
		c.state = StatePolling
	}

	if c.state == StatePolling {
		if offset == 0 {
			return nil
		}
		c.state = StateMeasuring
	}

	switch c.state {
	case StateMeasuring:
		if !c.window.push(offset) {
			return nil
		}
		avg := c.window.drain()
		if avg == 0 {
			c.state = StatePolling
			return nil
		}
		delta := rateDelta(avg, c.cfg.MaxAdjustmentProportion, nominal)
		applied := c.SetPlaybackRate(nominal + delta)
		c.adjustUntil = time.Now().Add(c.cfg.AdjustmentWindow())
		c.state = StateAdjusting
		c.log.WithFields(log.Fields{
			"op":     "sync",
			"offset": avg,
			"rate":   applied,
		}).Debug("adjusting playback rate")
	case StateAdjusting:
		if offset == 0 || !time.Now().Before(c.adjustUntil) {
			c.SetPlaybackRate(nominal)
			c.state = StatePolling
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnknownSyncState, c.state)
	}
	return nil
}

// hardSeek seeks to resolved and waits. Called with syncMu held; it
// releases syncMu while the seek is in flight and returns with it
// released.
func (c *Controller) hardSeek(ctx context.Context, el media.Element, resolved int, nominal float64) (SyncResult, error) {
	code := NewOperationCode()
	c.lastSyncCode = code
	c.syncSeeking = true
	c.syncSeekFrame = resolved
	c.state = StateSeeking
	c.window.reset()
	c.syncMu.Unlock()

	if el.PlaybackRate() != nominal {
		el.SetPlaybackRate(nominal)
	}
	err := c.SeekToTime(ctx, c.conv.SeekTarget(resolved), WithOperationCode(code))

	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	res := SyncResult{
		ActualFrameNumber:   c.estimateFrame(el),
		ResolvedFrameNumber: resolved,
		Step:                StateSeeking,
	}
	current := c.lastSyncCode == code
	if current {
		c.syncSeeking = false
		c.state = StatePolling
	}

	var aborted *SeekAbortedError
	switch {
	case errors.As(err, &aborted):
		if aborted.SupersededBy == c.lastSyncCode && !current {
			res.Step = StateAbortedBySubsequentSyncToFrame
		} else {
			res.Step = StateAbortedBySubsequentSeekToTime
		}
		return res, nil
	case err != nil:
		return res, err
	}
	c.forwardAudio(res.ActualFrameNumber)
	return res, nil
}

// resetSyncLocked returns the state machine to polling. Called with syncMu held.
func (c *Controller) resetSyncLocked() {
	c.state = StatePolling
	c.window.reset()
	c.adjustUntil = time.Time{}
}

func (c *Controller) estimateFrame(el media.Element) int {
	return c.conv.FrameNumber(el.CurrentTime(), !el.Paused())
}

func (c *Controller) timelinePaused(el media.Element) bool {
	if c.timeline != nil {
		return c.timeline.Paused()
	}
	return el.Paused()
}

func (c *Controller) forwardAudio(frame int) {
	if c.audio != nil {
		c.audio.SyncToFrame(frame)
	}
}
