package mediasync

import (
	"time"

	"github.com/llehouerou/framesync/internal/frametime"
)

// Tunable constants of the soft-sync controller. They were tuned by ear
// to avoid audible artifacts and are kept as-is.
const (
	// MinPlaybackRate and MaxPlaybackRate bound the rates every supported
	// engine plays without distortion.
	MinPlaybackRate = 0.25
	MaxPlaybackRate = 2.0
	// InitialRateDelta bounds rate changes right after playback started.
	InitialRateDelta = 0.1
	// DefaultMaxAdjustmentProportion bounds a correction to 10% of the
	// nominal rate.
	DefaultMaxAdjustmentProportion = 0.1
	// DefaultSampleWindow is the number of offsets averaged before
	// adjusting.
	DefaultSampleWindow = 3
	// The offset is the requested frame minus the displayed one. A
	// positive offset beyond MediaBehindThresholdSeconds of frames, or a
	// negative one beyond MediaAheadThresholdSeconds, triggers a hard seek.
	MediaBehindThresholdSeconds = 1.0
	MediaAheadThresholdSeconds  = 0.25
)

const (
	DefaultPlayTimeout         = 10 * time.Second
	DefaultSeekTimeout         = 10 * time.Second
	DefaultNotUpdatingInterval = 70 * time.Millisecond
	DefaultInitialRateWindow   = 3000 * time.Millisecond
)

// Config holds the controller settings.
type Config struct {
	Framerate float64
	// PlayTimeout bounds the wait for playback to actually start.
	PlayTimeout time.Duration
	// SeekTimeout bounds a whole seek, quiescence wait included.
	SeekTimeout time.Duration
	// NotUpdatingInterval is the quiescence interval after which the
	// element counts as settled. 70ms exceeds two frames at 30fps so
	// trailing frames from a pause do not race a new seek.
	NotUpdatingInterval time.Duration
	DefaultPlaybackRate float64
	// PlayAudioWithVideo requests audio and video playback together, for
	// platforms that only honour a user gesture for the first request.
	PlayAudioWithVideo      bool
	Calibration             frametime.Calibration
	Platform                frametime.Platform
	MaxAdjustmentProportion float64
	SampleWindow            int
	InitialRateWindow       time.Duration
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Framerate:               frametime.DefaultFramerate,
		PlayTimeout:             DefaultPlayTimeout,
		SeekTimeout:             DefaultSeekTimeout,
		NotUpdatingInterval:     DefaultNotUpdatingInterval,
		DefaultPlaybackRate:     1,
		Calibration:             frametime.DefaultCalibration(),
		MaxAdjustmentProportion: DefaultMaxAdjustmentProportion,
		SampleWindow:            DefaultSampleWindow,
		InitialRateWindow:       DefaultInitialRateWindow,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Framerate <= 0 {
		c.Framerate = d.Framerate
	}
	if c.PlayTimeout <= 0 {
		c.PlayTimeout = d.PlayTimeout
	}
	if c.SeekTimeout <= 0 {
		c.SeekTimeout = d.SeekTimeout
	}
	if c.NotUpdatingInterval <= 0 {
		c.NotUpdatingInterval = d.NotUpdatingInterval
	}
	if c.DefaultPlaybackRate <= 0 {
		c.DefaultPlaybackRate = d.DefaultPlaybackRate
	}
	if c.Calibration == nil {
		c.Calibration = d.Calibration
	}
	if c.MaxAdjustmentProportion <= 0 {
		c.MaxAdjustmentProportion = d.MaxAdjustmentProportion
	}
	if c.SampleWindow <= 0 {
		c.SampleWindow = d.SampleWindow
	}
	if c.InitialRateWindow <= 0 {
		c.InitialRateWindow = d.InitialRateWindow
	}
	return c
}

// AdjustmentWindow is how long a corrected rate is held:
// 1000/framerate/maxAdjustmentProportion milliseconds.
func (c Config) AdjustmentWindow() time.Duration {
	ms := 1000 / c.Framerate / c.MaxAdjustmentProportion
	return time.Duration(ms * float64(time.Millisecond))
}
