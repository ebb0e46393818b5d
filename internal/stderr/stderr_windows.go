//go:build windows

// Package stderr provides a no-op implementation for Windows.
// Windows audio libraries don't produce the same stderr noise as ALSA.
package stderr

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Capture is a no-op on Windows.
type Capture struct{}

// Start is a no-op on Windows.
func Start(log.FieldLogger) (*Capture, error) {
	return &Capture{}, nil
}

// WriteOriginal writes to stderr.
func (*Capture) WriteOriginal(msg string) {
	_, _ = os.Stderr.WriteString(msg)
}

// Stop is a no-op on Windows.
func (*Capture) Stop() {}
