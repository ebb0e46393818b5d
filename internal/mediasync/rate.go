package mediasync

import "time"

// ConstrainPlaybackRate clamps rate to [MinPlaybackRate, MaxPlaybackRate].
func ConstrainPlaybackRate(rate float64) float64 {
	return min(max(rate, MinPlaybackRate), MaxPlaybackRate)
}

// ConstrainInitialPlaybackRate keeps rate within InitialRateDelta of the
// current rate, then within the global bounds.
func ConstrainInitialPlaybackRate(rate, current float64) float64 {
	return ConstrainPlaybackRate(min(max(rate, current-InitialRateDelta), current+InitialRateDelta))
}

// PlaybackRate returns the element playback rate.
func (c *Controller) PlaybackRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.el.PlaybackRate()
}

// SetPlaybackRate applies rate through the rate constraints and returns
// the rate actually applied. During the first InitialRateWindow after
// playback started, changes are limited to avoid audible jumps.
func (c *Controller) SetPlaybackRate(rate float64) float64 {
	c.mu.Lock()
	el := c.el
	current := el.PlaybackRate()
	applied := ConstrainPlaybackRate(rate)
	if !c.playStartedAt.IsZero() && time.Since(c.playStartedAt) < c.cfg.InitialRateWindow {
		applied = ConstrainInitialPlaybackRate(rate, current)
	}
	c.mu.Unlock()

	if applied != current {
		el.SetPlaybackRate(applied)
	}
	return applied
}

// DefaultPlaybackRate returns the nominal rate soft sync returns to.
func (c *Controller) DefaultPlaybackRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nominalRate
}

// SetDefaultPlaybackRate changes the nominal rate, for example when the
// host timeline speed changes under time remap.
func (c *Controller) SetDefaultPlaybackRate(rate float64) {
	c.mu.Lock()
	c.nominalRate = ConstrainPlaybackRate(rate)
	c.mu.Unlock()
}
