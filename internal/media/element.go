// Package media defines the capability the sync engine needs from a
// playable, seekable media element.
package media

import (
	"context"
	"time"
)

// EventType identifies a media element notification.
type EventType int

const (
	// EventSeeked fires once a position change has been applied.
	EventSeeked EventType = iota
	// EventTimeUpdate fires whenever the reported position changes,
	// including every rendered frame while playing.
	EventTimeUpdate
	// EventPlaying fires when playback actually started.
	EventPlaying
	// EventPause fires when playback paused.
	EventPause
	// EventEnded fires when playback reached the end of the media.
	EventEnded
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventSeeked:
		return "seeked"
	case EventTimeUpdate:
		return "timeupdate"
	case EventPlaying:
		return "playing"
	case EventPause:
		return "pause"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is a notification emitted by an Element.
type Event struct {
	Type EventType
	// Time is the element position in seconds when the event fired.
	Time float64
	At   time.Time
}

// TimeRange is a buffered range of the media, in seconds.
type TimeRange struct {
	Start float64
	End   float64
}

// Contains reports whether t lies within the range.
func (r TimeRange) Contains(t float64) bool {
	return t >= r.Start && t <= r.End
}

// Buffered reports whether t lies within any of ranges.
func Buffered(ranges []TimeRange, t float64) bool {
	for _, r := range ranges {
		if r.Contains(t) {
			return true
		}
	}
	return false
}

// Element is a loadable, seekable, playable media resource.
//
// Implementations deliver events on any goroutine; handlers must not
// block.
type Element interface {
	// Source returns the identity of the underlying resource.
	Source() string
	// Load blocks until the media data is available or loading failed.
	Load(ctx context.Context) error
	// Duration returns the media length in seconds.
	Duration() float64
	CurrentTime() float64
	SetCurrentTime(seconds float64)
	PlaybackRate() float64
	SetPlaybackRate(rate float64)
	Paused() bool
	Buffered() []TimeRange
	// Play requests playback. A nil error means the request was accepted;
	// EventPlaying signals the actual start.
	Play(ctx context.Context) error
	Pause()
	// Subscribe registers an event handler and returns a function
	// removing it.
	Subscribe(handler func(Event)) (unsubscribe func())
}
