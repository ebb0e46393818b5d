// Package frametime converts between frame numbers and media element
// times.
//
// Media elements report currentTime with a small engine-specific bias
// that differs between playing and paused states. The bias is expressed
// as a fractional frame offset and applied only while paused.
package frametime

import "math"

// DefaultFramerate is used when no framerate is configured.
const DefaultFramerate = 30.0

const microsecond = 1e-6

// SecondsToFrameNumber returns the frame displayed at the given element
// time. The calibration offset is added only when the element is not
// playing.
func SecondsToFrameNumber(seconds, framerate float64, isPlaying bool, offset float64) int {
	frames := seconds * framerate
	if !isPlaying {
		frames += offset
	}
	return int(math.Round(frames))
}

// FrameNumberToSeconds is the inverse of SecondsToFrameNumber for a paused
// element. Frame 0 always maps to 0 so seek targets never go negative.
func FrameNumberToSeconds(frameNumber int, framerate, offset float64) float64 {
	if frameNumber == 0 {
		return 0
	}
	return (float64(frameNumber) - offset) / framerate
}

// FrameNumberToVideoElementTime returns a seek target that lands the
// element on the frame beginning at the frame's start time instead of the
// frame ending there. The time is truncated to microseconds and bumped by
// one microsecond. Elements round a seek to exactly one second down to
// the previous frame, so that time needs a two microsecond bump.
func FrameNumberToVideoElementTime(frameNumber int, framerate float64) float64 {
	if frameNumber <= 0 {
		return 0
	}
	seconds := float64(frameNumber) / framerate
	// The epsilon keeps values like 0.1*1e6 = 99999.99999999999 from
	// truncating a whole microsecond away.
	micros := math.Floor(seconds/microsecond + 1e-6)
	bump := 1.0
	if micros == 1e6 {
		bump = 2
	}
	return (micros + bump) / 1e6
}

// Converter binds a framerate to a resolved calibration offset.
type Converter struct {
	Framerate float64
	Offset    float64
}

// NewConverter returns a converter for the given framerate and the offset
// of platform in the calibration table.
func NewConverter(framerate float64, calibration Calibration, platform Platform) Converter {
	if framerate <= 0 {
		framerate = DefaultFramerate
	}
	return Converter{Framerate: framerate, Offset: calibration.Offset(platform)}
}

// FrameNumber returns the frame displayed at seconds.
func (c Converter) FrameNumber(seconds float64, isPlaying bool) int {
	return SecondsToFrameNumber(seconds, c.Framerate, isPlaying, c.Offset)
}

// Seconds returns the element time of frameNumber.
func (c Converter) Seconds(frameNumber int) float64 {
	return FrameNumberToSeconds(frameNumber, c.Framerate, c.Offset)
}

// SeekTarget returns the element seek target of frameNumber.
func (c Converter) SeekTarget(frameNumber int) float64 {
	return FrameNumberToVideoElementTime(frameNumber, c.Framerate)
}

// FrameDuration returns the length of one frame in seconds.
func (c Converter) FrameDuration() float64 {
	return 1 / c.Framerate
}
