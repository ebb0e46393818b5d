package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/framesync/internal/frametime"
	"github.com/llehouerou/framesync/internal/mediasync"
	"github.com/llehouerou/framesync/internal/timecode"
	"github.com/llehouerou/framesync/internal/timeline"
)

const (
	appName        = "framesync"
	configFileName = "framesync.toml"
)

type Config struct {
	Framerate             float64 `koanf:"framerate"`
	PlayTimeoutMS         int     `koanf:"play_timeout_ms"`
	SeekTimeoutMS         int     `koanf:"seek_timeout_ms"`
	NotUpdatingIntervalMS int     `koanf:"not_updating_interval_ms"`
	DefaultPlaybackRate   float64 `koanf:"default_playback_rate"`
	// Request audio and video playback together, for platforms that only
	// honour the user gesture of the first request.
	PlayAudioWithVideo bool   `koanf:"play_audio_with_video"`
	Platform           string `koanf:"platform"` // "engine-os", e.g. "safari-macos"
	LogLevel           string `koanf:"log_level"`

	// Calibration overrides the built-in per-platform frame offsets.
	Calibration map[string]float64 `koanf:"calibration"`

	Asset     SizeConfig      `koanf:"asset"`
	Display   SizeConfig      `koanf:"display"`
	Timecode  TimecodeConfig  `koanf:"timecode"`
	Clip      ClipConfig      `koanf:"clip"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// SizeConfig is a width and height in pixels.
type SizeConfig struct {
	Width  float64 `koanf:"width"`
	Height float64 `koanf:"height"`
}

// TimecodeConfig describes the timecode burned into the video.
type TimecodeConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Digits      int     `koanf:"digits"`       // default: 16
	DigitWidth  float64 `koanf:"digit_width"`  // default: 8
	DigitHeight float64 `koanf:"digit_height"` // default: 8
	Placement   string  `koanf:"placement"`    // default: "bottom-left"
	PaddingTop  float64 `koanf:"padding_top"`
	ScaleMode   string  `koanf:"scale_mode"` // "fixed" or "relative" (default: "fixed")
}

// ClipConfig places the media on the timeline.
type ClipConfig struct {
	Start     float64          `koanf:"start"`
	End       float64          `koanf:"end"` // 0 means the end of the media
	Keyframes []KeyframeConfig `koanf:"keyframes"`
}

// KeyframeConfig is one time remap keyframe, in seconds.
type KeyframeConfig struct {
	At    float64 `koanf:"at"`
	Media float64 `koanf:"media"`
}

// TelemetryConfig controls tick report persistence.
type TelemetryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"` // default: XDG data dir
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `koanf:"addr"` // e.g. ":9090", empty disables
}

func Load() (*Config, error) {
	return LoadFrom(getConfigPaths()...)
}

// LoadFrom loads the existing files among paths, later files overriding
// earlier ones.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.Platform = strings.ToLower(strings.TrimSpace(cfg.Platform))
	if cfg.Telemetry.Path != "" {
		cfg.Telemetry.Path = expandPath(cfg.Telemetry.Path)
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. $XDG_CONFIG_HOME/framesync/framesync.toml
	paths = append(paths, filepath.Join(xdg.ConfigHome, appName, configFileName))

	// 2. ./framesync.toml (pwd, highest priority)
	paths = append(paths, configFileName)

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// GetSyncConfig returns the controller settings with defaults applied.
func (c *Config) GetSyncConfig() mediasync.Config {
	cfg := mediasync.DefaultConfig()

	if c.Framerate > 0 {
		cfg.Framerate = c.Framerate
	}
	if d := millis(c.PlayTimeoutMS); d > 0 {
		cfg.PlayTimeout = d
	}
	if d := millis(c.SeekTimeoutMS); d > 0 {
		cfg.SeekTimeout = d
	}
	if d := millis(c.NotUpdatingIntervalMS); d > 0 {
		cfg.NotUpdatingInterval = d
	}
	if c.DefaultPlaybackRate > 0 {
		cfg.DefaultPlaybackRate = mediasync.ConstrainPlaybackRate(c.DefaultPlaybackRate)
	}
	cfg.PlayAudioWithVideo = c.PlayAudioWithVideo
	cfg.Platform = frametime.Platform(c.Platform)

	overrides := make(frametime.Calibration, len(c.Calibration))
	for p, offset := range c.Calibration {
		overrides[frametime.Platform(strings.ToLower(p))] = offset
	}
	cfg.Calibration = cfg.Calibration.Merge(overrides)

	return cfg
}

// GetTimecodeSettings returns the timecode settings with defaults
// applied. The second result is false when the timecode is disabled.
func (c *Config) GetTimecodeSettings() (timecode.Settings, bool, error) {
	tc := c.Timecode
	s := timecode.Settings{
		Digits:      tc.Digits,
		DigitWidth:  tc.DigitWidth,
		DigitHeight: tc.DigitHeight,
		Placement:   timecode.Placement(tc.Placement),
		PaddingTop:  tc.PaddingTop,
		ScaleMode:   timecode.ScaleMode(tc.ScaleMode),
	}

	// Apply defaults
	if s.Digits <= 0 {
		s.Digits = 16
	}
	if s.DigitWidth <= 0 {
		s.DigitWidth = 8
	}
	if s.DigitHeight <= 0 {
		s.DigitHeight = 8
	}
	if s.Placement == "" {
		s.Placement = timecode.PlacementBottomLeft
	}
	if s.ScaleMode == "" {
		s.ScaleMode = timecode.ScaleFixed
	}

	if err := s.Validate(); err != nil {
		return s, tc.Enabled, err
	}
	return s, tc.Enabled, nil
}

// AssetSize returns the asset dimensions, defaulting to 1920x1080.
func (c *Config) AssetSize() timecode.Size {
	return sizeOr(c.Asset, timecode.Size{Width: 1920, Height: 1080})
}

// DisplaySize returns the display dimensions, defaulting to the asset
// size.
func (c *Config) DisplaySize() timecode.Size {
	return sizeOr(c.Display, c.AssetSize())
}

func sizeOr(s SizeConfig, def timecode.Size) timecode.Size {
	if s.Width <= 0 || s.Height <= 0 {
		return def
	}
	return timecode.Size{Width: s.Width, Height: s.Height}
}

// GetClip returns the clip for media of the given duration. Without
// keyframes the media plays at normal speed from the clip start.
func (c *Config) GetClip(mediaDuration float64) (timeline.Clip, error) {
	keys := make([]timeline.Keyframe, 0, len(c.Clip.Keyframes))
	for _, k := range c.Clip.Keyframes {
		keys = append(keys, timeline.Keyframe{At: k.At, Media: k.Media})
	}
	remap, err := timeline.NewRemap(keys...)
	if err != nil {
		return timeline.Clip{}, err
	}

	start := max(c.Clip.Start, 0)
	end := c.Clip.End
	if end <= start {
		end = start + mediaDuration
	}
	return timeline.Clip{Start: start, End: end, Remap: remap}, nil
}

// HasMetrics returns true if the metrics endpoint is configured.
func (c *Config) HasMetrics() bool {
	return c.Metrics.Addr != ""
}
