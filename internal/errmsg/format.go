// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Media operations
	OpMediaLoad    Op = "load media"
	OpAudioLoad    Op = "load audio track"
	OpTimecodeRead Op = "read timecode"

	// Playback operations
	OpPlaybackStart Op = "start playback"
	OpPlaybackSeek  Op = "seek"
	OpSeekToFrame   Op = "seek to frame"
	OpSyncToFrame   Op = "sync to frame"

	// Telemetry
	OpTelemetryOpen   Op = "open telemetry store"
	OpTelemetryRecord Op = "record telemetry"

	// Metrics
	OpMetricsServe Op = "serve metrics"

	// Configuration
	OpConfigLoad Op = "load config"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
