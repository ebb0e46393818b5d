package mediasync

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

// Track drives a secondary element, typically a separate audio file,
// through its own controller so it follows the frames of a primary one.
type Track struct {
	c *Controller
}

// NewTrack returns an AudioTrack backed by c.
func NewTrack(c *Controller) *Track {
	return &Track{c: c}
}

func (t *Track) Play(ctx context.Context) error {
	return t.c.Play(ctx)
}

func (t *Track) Pause() {
	t.c.Stop()
}

func (t *Track) SeekToFrame(ctx context.Context, frame int) error {
	return t.c.SeekToFrame(ctx, frame)
}

// SyncToFrame corrects the track asynchronously. A hard seek of the track
// never delays the primary controller.
func (t *Track) SyncToFrame(frame int) {
	go func() {
		_, err := t.c.SyncToFrame(context.Background(), frame)
		if err == nil || errors.Is(err, ErrAbortedBySubsequentSeek) || errors.Is(err, ErrDestroyed) {
			return
		}
		t.c.log.WithError(err).WithFields(log.Fields{
			"op":    "track sync",
			"frame": frame,
		}).Warn("track sync failed")
	}()
}
