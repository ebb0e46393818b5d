package mediasync

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Play starts playback and waits until the element reports it actually
// started, bounded by the play timeout.
func (c *Controller) Play(ctx context.Context) error {
	start := time.Now()
	err := c.play(ctx)
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer.ObservePlay(Outcome(err), elapsed)
	}
	entry := c.log.WithFields(log.Fields{"op": "play", "elapsed": elapsed})
	if err != nil {
		entry.WithError(err).Warn("play failed")
	} else {
		entry.Debug("playing")
	}
	return err
}

func (c *Controller) play(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.destroyed:
		c.mu.Unlock()
		return ErrDestroyed
	case !c.loaded:
		c.mu.Unlock()
		return ErrVideoNotLoaded
	case c.playPending:
		c.mu.Unlock()
		return ErrAbortedByActivePlayingRequest
	case c.pending != nil:
		c.mu.Unlock()
		return ErrAbortedBySeekToTimeRequest
	}
	c.playPending = true
	c.externalStop = false
	el, audio := c.el, c.audio
	together := audio != nil && c.cfg.PlayAudioWithVideo
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.playPending = false
		c.mu.Unlock()
	}()

	started := make(chan struct{})
	var once sync.Once
	id := c.playingListeners.Add(struct{}{}, func(struct{}) {
		once.Do(func() { close(started) })
	})
	defer c.playingListeners.Remove(id)

	timer := time.NewTimer(c.cfg.PlayTimeout)
	defer timer.Stop()

	// An element already playing does not report playing again.
	if !el.Paused() {
		once.Do(func() { close(started) })
	}

	if together {
		audioDone := make(chan error, 1)
		go func() { audioDone <- audio.Play(ctx) }()
		videoErr := el.Play(ctx)
		c.audioStarted(<-audioDone)
		if videoErr != nil {
			return &PlayError{Err: videoErr}
		}
	} else {
		if err := el.Play(ctx); err != nil {
			return &PlayError{Err: err}
		}
		if audio != nil {
			c.audioStarted(audio.Play(ctx))
		}
	}

	select {
	case <-started:
		return nil
	case <-timer.C:
		return ErrPlayTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// audioStarted records the audio play outcome. Audio failures never block
// video playback.
func (c *Controller) audioStarted(err error) {
	if err != nil {
		c.log.WithError(err).WithField("op", "play").Warn("audio playback failed")
		return
	}
	c.mu.Lock()
	c.audioPlaying = true
	c.mu.Unlock()
}

// Stop pauses the element and any audio this controller started. A seek
// in flight will not resume playback afterwards.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.externalStop = true
	c.pausedBySeek = false
	el, audio := c.el, c.audio
	audioPlaying := c.audioPlaying
	c.audioPlaying = false
	c.mu.Unlock()

	el.Pause()
	if audio != nil && audioPlaying {
		audio.Pause()
	}
}
