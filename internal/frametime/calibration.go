package frametime

import "strings"

// Platform identifies a media engine and operating system, for example
// "safari-macos". It is resolved once at startup by the host.
type Platform string

// NewPlatform builds a platform identifier from an engine and an OS name.
func NewPlatform(engine, os string) Platform {
	return Platform(strings.ToLower(strings.TrimSpace(engine)) + "-" + strings.ToLower(strings.TrimSpace(os)))
}

// Calibration maps platforms to the fractional frame offset their engine
// reports while paused.
type Calibration map[Platform]float64

// DefaultCalibration holds empirically measured offsets. Offsets must stay
// within (-0.5, 0.5) so frame 0 survives a round trip.
func DefaultCalibration() Calibration {
	return Calibration{
		"chrome-windows":  0,
		"chrome-macos":    0,
		"chrome-linux":    0,
		"firefox-windows": 0,
		"firefox-macos":   0,
		"firefox-linux":   0,
		"safari-macos":    0.3,
		"safari-ios":      0.3,
	}
}

// Offset returns the offset of p, or 0 for unknown platforms.
func (c Calibration) Offset(p Platform) float64 {
	if c == nil {
		return 0
	}
	return c[p]
}

// Merge returns a copy of c overridden by other.
func (c Calibration) Merge(other Calibration) Calibration {
	out := make(Calibration, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
