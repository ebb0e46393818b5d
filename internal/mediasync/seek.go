package mediasync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/llehouerou/framesync/internal/listeners"
	"github.com/llehouerou/framesync/internal/media"
)

// pendingSeek is the single outstanding SeekToTime operation. It is
// finished exactly once: whoever clears c.pending sends the result.
type pendingSeek struct {
	code   OperationCode
	target float64
	done   chan error
	timer  *time.Timer

	settledID listeners.ID
	seekedID  listeners.ID
	updateID  listeners.ID
	seeking   bool
}

type seekOptions struct {
	code OperationCode
}

// SeekOption configures a single seek.
type SeekOption func(*seekOptions)

// WithOperationCode tags the seek with code instead of a fresh one.
func WithOperationCode(code OperationCode) SeekOption {
	return func(o *seekOptions) { o.code = code }
}

// SeekToTime positions the element at target seconds, negative targets
// clamped to zero. A seek already pending is aborted with a
// *SeekAbortedError before this one starts.
//
// When the element is playing it is paused first, then the seek waits
// until the element stops reporting updates, sets the position and waits
// for the matching time update. Playback resumes afterwards if this seek
// paused it and Stop was not called meanwhile.
func (c *Controller) SeekToTime(ctx context.Context, target float64, opts ...SeekOption) error {
	var o seekOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.code == 0 {
		o.code = NewOperationCode()
	}
	target = max(target, 0)

	start := time.Now()
	err := c.seekToTime(ctx, target, o.code)
	if err == nil {
		err = c.resumeAfterSeek(ctx)
	}
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer.ObserveSeek(Outcome(err), elapsed)
	}
	entry := c.log.WithFields(log.Fields{
		"op":      "seek",
		"target":  target,
		"code":    int64(o.code),
		"elapsed": elapsed,
	})
	switch {
	case err == nil:
		entry.Debug("seek complete")
	case errors.Is(err, ErrAbortedBySubsequentSeek):
		entry.Debug("seek superseded")
	default:
		entry.WithError(err).Warn("seek failed")
	}
	return err
}

func (c *Controller) seekToTime(ctx context.Context, target float64, code OperationCode) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	if !c.loaded {
		c.mu.Unlock()
		return ErrVideoNotLoaded
	}
	c.abortPendingLocked(code)

	el := c.el
	if sameMillisecond(target, el.CurrentTime()) && media.Buffered(el.Buffered(), target) {
		c.mu.Unlock()
		return nil
	}

	p := &pendingSeek{
		code:   code,
		target: target,
		done:   make(chan error, 1),
	}
	p.timer = time.AfterFunc(c.cfg.SeekTimeout, func() {
		c.finishPending(p, ErrSeekTimeout)
	})
	c.pending = p
	playing := !el.Paused()
	var audio AudioTrack
	if playing {
		c.pausedBySeek = true
		c.externalStop = false
		if c.audioPlaying {
			audio = c.audio
			c.audioPlaying = false
		}
	}
	c.mu.Unlock()

	if playing {
		el.Pause()
	}
	if audio != nil {
		audio.Pause()
	}

	c.mu.Lock()
	if c.pending == p {
		p.settledID = c.settledListeners.Add(struct{}{}, func(struct{}) {
			c.applyPending(p)
		})
	}
	c.mu.Unlock()

	select {
	case err := <-p.done:
		return err
	case <-ctx.Done():
		c.finishPending(p, ctx.Err())
		return <-p.done
	}
}

// applyPending runs once the element settled: it sets the position and
// waits for the element to report it.
func (c *Controller) applyPending(p *pendingSeek) {
	c.mu.Lock()
	if c.pending != p || p.seeking {
		c.mu.Unlock()
		return
	}
	p.seeking = true
	c.settledListeners.Remove(p.settledID)
	p.settledID = 0
	reached := func(float64) { c.finishPending(p, nil) }
	p.seekedID = c.seekListeners.Add(p.target, reached)
	p.updateID = c.timeUpdateListeners.Add(p.target, reached)
	el := c.el
	c.mu.Unlock()

	el.SetCurrentTime(p.target)
}

// finishPending completes p with err unless p was already finished.
func (c *Controller) finishPending(p *pendingSeek, err error) {
	c.mu.Lock()
	if c.pending != p {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.releasePendingLocked(p)
	c.mu.Unlock()
	p.done <- err
}

func (c *Controller) abortPendingLocked(by OperationCode) {
	p := c.pending
	if p == nil {
		return
	}
	c.pending = nil
	c.releasePendingLocked(p)
	p.done <- &SeekAbortedError{Code: p.code, SupersededBy: by}
}

func (c *Controller) releasePendingLocked(p *pendingSeek) {
	p.timer.Stop()
	if p.settledID != 0 {
		c.settledListeners.Remove(p.settledID)
	}
	if p.seekedID != 0 {
		c.seekListeners.Remove(p.seekedID)
	}
	if p.updateID != 0 {
		c.timeUpdateListeners.Remove(p.updateID)
	}
}

func (c *Controller) resumeAfterSeek(ctx context.Context) error {
	c.mu.Lock()
	resume := c.pausedBySeek && !c.externalStop && c.pending == nil
	if resume {
		c.pausedBySeek = false
	}
	c.mu.Unlock()
	if !resume {
		return nil
	}

	err := c.play(ctx)
	if err == nil {
		return nil
	}
	var playErr *PlayError
	if errors.As(err, &playErr) {
		return err
	}
	return &PlayError{Err: err}
}

// SeekToFrame places the element on frame. Repeated calls for the same
// frame while the element position is unchanged do nothing.
//
// With a timecode reader the position is verified against the rendered
// frame; otherwise the frame is converted to a seek target. An attached
// audio track is then moved to the same frame.
func (c *Controller) SeekToFrame(ctx context.Context, frame int) error {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return ErrVideoNotLoaded
	}
	frame = c.clampFrameLocked(frame)
	if c.memo.valid && c.memo.frame == frame && c.memo.currentTime == c.el.CurrentTime() {
		c.mu.Unlock()
		return nil
	}
	locator, audio := c.locator, c.audio
	c.mu.Unlock()

	if locator != nil {
		res, err := locator.Seek(ctx, frame)
		if err != nil {
			return fmt.Errorf("locate frame %d: %w", frame, err)
		}
		c.log.WithFields(log.Fields{
			"op":       "seek_frame",
			"frame":    frame,
			"decoded":  res.Frame,
			"verified": res.Verified,
			"attempts": res.Attempts,
		}).Debug("frame located")
	} else if err := c.SeekToTime(ctx, c.conv.SeekTarget(frame)); err != nil {
		return err
	}

	if audio != nil {
		if err := audio.SeekToFrame(ctx, frame); err != nil {
			return fmt.Errorf("audio seek to frame %d: %w", frame, err)
		}
	}

	c.mu.Lock()
	c.memo = frameMemo{valid: true, frame: frame, currentTime: c.el.CurrentTime()}
	c.mu.Unlock()
	return nil
}

func (c *Controller) clampFrameLocked(frame int) int {
	frames := int(math.Floor(c.duration*c.conv.Framerate + 1e-9))
	return min(max(frame, 0), max(frames-1, 0))
}
