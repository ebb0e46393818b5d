// Package timeline implements a clock-driven virtual timeline that the
// media is kept in sync with.
package timeline

import (
	"sync"
	"time"
)

// Timeline advances at Rate while playing and stops at Duration.
type Timeline struct {
	mu       sync.Mutex
	now      func() time.Time
	duration float64
	rate     float64

	playing  bool
	position float64
	anchor   time.Time
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Timeline) { t.now = now }
}

// WithRate sets the playback speed of the timeline.
func WithRate(rate float64) Option {
	return func(t *Timeline) {
		if rate > 0 {
			t.rate = rate
		}
	}
}

// New creates a paused timeline of duration seconds.
func New(duration float64, opts ...Option) *Timeline {
	t := &Timeline{now: time.Now, duration: duration, rate: 1}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Play starts the timeline from the current position. Playing at the
// end restarts from zero.
func (t *Timeline) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		return
	}
	if t.position >= t.duration {
		t.position = 0
	}
	t.playing = true
	t.anchor = t.now()
}

// Pause freezes the timeline at the current position.
func (t *Timeline) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.position = t.currentLocked()
	t.playing = false
}

// Toggle switches between playing and paused.
func (t *Timeline) Toggle() {
	if t.Paused() {
		t.Play()
	} else {
		t.Pause()
	}
}

// SeekTo moves to seconds, clamped to the timeline.
func (t *Timeline) SeekTo(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.position = min(max(seconds, 0), t.duration)
	t.anchor = t.now()
}

// CurrentTime returns the position in seconds. Reaching the end pauses
// the timeline.
func (t *Timeline) CurrentTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos := t.currentLocked()
	if t.playing && pos >= t.duration {
		t.playing = false
		t.position = t.duration
	}
	return pos
}

// Paused reports whether the timeline is paused, including after it
// reached the end.
func (t *Timeline) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing && t.currentLocked() >= t.duration {
		t.playing = false
		t.position = t.duration
	}
	return !t.playing
}

// Duration returns the timeline length in seconds.
func (t *Timeline) Duration() float64 {
	return t.duration
}

// Rate returns the timeline speed.
func (t *Timeline) Rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rate
}

// SetRate changes the timeline speed without moving the position.
func (t *Timeline) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.position = t.currentLocked()
	t.anchor = t.now()
	t.rate = rate
}

func (t *Timeline) currentLocked() float64 {
	if !t.playing {
		return t.position
	}
	elapsed := t.now().Sub(t.anchor).Seconds() * t.rate
	return min(t.position+elapsed, t.duration)
}
