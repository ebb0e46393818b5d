// Package mediasync keeps a media element on the frame a host timeline
// asks for.
//
// The Controller owns the element's play state and guarantees at most one
// pending seek. Seeks pause the element, wait until it stops reporting
// frame updates, set the position and wait for the matching time update.
// SyncToFrame runs once per timeline tick and either nudges the playback
// rate to close a small drift or falls back to a hard seek.
package mediasync

import (
	"context"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/llehouerou/framesync/internal/frametime"
	"github.com/llehouerou/framesync/internal/listeners"
	"github.com/llehouerou/framesync/internal/media"
	"github.com/llehouerou/framesync/internal/timecode"
)

// AudioTrack is an externally driven audio element kept on the same
// frame as the video.
type AudioTrack interface {
	Play(ctx context.Context) error
	Pause()
	SeekToFrame(ctx context.Context, frame int) error
	SyncToFrame(frame int)
}

// Timeline reports whether the host timeline is paused.
type Timeline interface {
	Paused() bool
}

// Observer receives operation outcomes, for metrics.
type Observer interface {
	ObserveSeek(outcome string, elapsed time.Duration)
	ObservePlay(outcome string, elapsed time.Duration)
}

type Controller struct {
	mu sync.Mutex

	cfg      Config
	conv     frametime.Converter
	log      log.FieldLogger
	observer Observer

	el          media.Element
	unsubscribe func()
	loaded      bool
	duration    float64

	audio        AudioTrack
	audioPlaying bool
	timeline     Timeline
	reader       timecode.FrameReader
	locatorOpts  []timecode.LocatorOption
	locator      *timecode.Locator

	seekListeners       listeners.Registry[float64]
	timeUpdateListeners listeners.Registry[float64]
	settledListeners    listeners.Registry[struct{}]
	playingListeners    listeners.Registry[struct{}]

	pending       *pendingSeek
	playPending   bool
	playStartedAt time.Time
	pausedBySeek  bool
	externalStop  bool
	lastUpdate    time.Time
	memo          frameMemo
	nominalRate   float64

	watcherStop chan struct{}
	watcherDone chan struct{}
	destroyed   bool

	// syncMu serializes SyncToFrame; it is always taken before mu.
	syncMu        sync.Mutex
	state         SyncState
	window        *offsetWindow
	adjustUntil   time.Time
	lastSyncCode  OperationCode
	syncSeeking   bool
	syncSeekFrame int
}

type frameMemo struct {
	valid       bool
	frame       int
	currentTime float64
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(c *Controller) { c.log = logger }
}

// WithAudioTrack attaches an externally driven audio element.
func WithAudioTrack(track AudioTrack) Option {
	return func(c *Controller) { c.audio = track }
}

// WithTimeline lets SyncToFrame see whether the host timeline is paused.
func WithTimeline(t Timeline) Option {
	return func(c *Controller) { c.timeline = t }
}

// WithTimecode enables frame-exact seeks verified by reading the
// burned-in timecode through reader.
func WithTimecode(reader timecode.FrameReader, opts ...timecode.LocatorOption) Option {
	return func(c *Controller) {
		c.reader = reader
		c.locatorOpts = opts
	}
}

// WithObserver reports operation outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// New creates a controller for el. The element must be loaded with Load
// before seeking or playing. Destroy releases the controller.
func New(el media.Element, cfg Config, opts ...Option) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		cfg:         cfg,
		conv:        frametime.NewConverter(cfg.Framerate, cfg.Calibration, cfg.Platform),
		log:         log.StandardLogger(),
		el:          el,
		nominalRate: ConstrainPlaybackRate(cfg.DefaultPlaybackRate),
		state:       StatePolling,
		window:      newOffsetWindow(cfg.SampleWindow),
		watcherStop: make(chan struct{}),
		watcherDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reader != nil {
		lopts := append([]timecode.LocatorOption{timecode.WithLogger(c.log)}, c.locatorOpts...)
		c.locator = timecode.NewLocator(c.seekFunc, c.reader, cfg.Framerate, lopts...)
	}
	c.unsubscribe = el.Subscribe(c.handleEvent)
	go c.watchUpdates(c.watcherStop, c.watcherDone)
	return c
}

func (c *Controller) seekFunc(ctx context.Context, seconds float64) error {
	return c.SeekToTime(ctx, seconds)
}

// Load loads the element and caches its duration. Later duration reads
// from elements may be garbled, so the value is captured once.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	el := c.el
	c.mu.Unlock()

	if err := el.Load(ctx); err != nil {
		c.log.WithError(err).WithField("source", el.Source()).Error("media load failed")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.el != el {
		return ErrResourceReplaced
	}
	c.loaded = true
	c.duration = el.Duration()
	if el.PlaybackRate() != c.nominalRate {
		el.SetPlaybackRate(c.nominalRate)
	}
	c.log.WithFields(log.Fields{
		"source":   el.Source(),
		"duration": c.duration,
	}).Debug("media loaded")
	return nil
}

// SetResource replaces the media element wholesale and loads the new one.
// A pending seek is aborted with ErrResourceReplaced.
func (c *Controller) SetResource(ctx context.Context, el media.Element) error {
	c.mu.Lock()
	if p := c.pending; p != nil {
		c.pending = nil
		c.releasePendingLocked(p)
		p.done <- ErrResourceReplaced
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	old := c.el
	c.el = el
	c.loaded = false
	c.duration = 0
	c.memo = frameMemo{}
	c.playStartedAt = time.Time{}
	c.pausedBySeek = false
	c.audioPlaying = false
	c.unsubscribe = el.Subscribe(c.handleEvent)
	c.mu.Unlock()

	old.Pause()

	c.syncMu.Lock()
	c.resetSyncLocked()
	c.syncSeeking = false
	c.syncMu.Unlock()

	return c.Load(ctx)
}

// Destroy aborts pending work, stops the update watcher and drops every
// listener.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	if p := c.pending; p != nil {
		c.pending = nil
		c.releasePendingLocked(p)
		p.done <- ErrDestroyed
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	close(c.watcherStop)
	c.mu.Unlock()

	<-c.watcherDone
	c.seekListeners.Clear()
	c.timeUpdateListeners.Clear()
	c.settledListeners.Clear()
	c.playingListeners.Clear()
}

// Loaded reports whether the element finished loading.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// CurrentTime returns the element position in seconds.
func (c *Controller) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.el.CurrentTime()
}

// Duration returns the duration captured at load.
func (c *Controller) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// Framerate returns the configured framerate.
func (c *Controller) Framerate() float64 {
	return c.conv.Framerate
}

// Converter returns the frame/time converter in use.
func (c *Controller) Converter() frametime.Converter {
	return c.conv
}

// MaximumFrameNumber returns the last navigable frame, zero-indexed.
func (c *Controller) MaximumFrameNumber() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clampFrameLocked(math.MaxInt)
}

// Paused reports whether the element is paused.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.el.Paused()
}

// UsesTimecode reports whether seeks are verified by the timecode.
func (c *Controller) UsesTimecode() bool {
	return c.locator != nil
}

// AddSeekListener calls cb when the element reports a completed seek at
// target. A NaN target matches every seek.
func (c *Controller) AddSeekListener(target float64, cb func(at float64)) listeners.ID {
	return c.seekListeners.Add(target, cb)
}

// RemoveSeekListener removes a seek listener.
func (c *Controller) RemoveSeekListener(id listeners.ID) bool {
	return c.seekListeners.Remove(id)
}

// AddTimeUpdateListener calls cb when the element reports target. A NaN
// target matches every update.
func (c *Controller) AddTimeUpdateListener(target float64, cb func(at float64)) listeners.ID {
	return c.timeUpdateListeners.Add(target, cb)
}

// RemoveTimeUpdateListener removes a time-update listener.
func (c *Controller) RemoveTimeUpdateListener(id listeners.ID) bool {
	return c.timeUpdateListeners.Remove(id)
}

// AddUpdateSettledListener calls cb every time the element has reported
// no update for the quiescence interval.
func (c *Controller) AddUpdateSettledListener(cb func()) listeners.ID {
	return c.settledListeners.Add(struct{}{}, func(struct{}) { cb() })
}

// RemoveUpdateSettledListener removes a settled listener.
func (c *Controller) RemoveUpdateSettledListener(id listeners.ID) bool {
	return c.settledListeners.Remove(id)
}

func (c *Controller) handleEvent(e media.Event) {
	switch e.Type {
	case media.EventSeeked:
		c.markUpdate()
		c.seekListeners.Dispatch(e.Time, sameMillisecond)
	case media.EventTimeUpdate:
		c.markUpdate()
		c.timeUpdateListeners.Dispatch(e.Time, sameMillisecond)
	case media.EventPlaying:
		c.mu.Lock()
		c.playStartedAt = time.Now()
		c.mu.Unlock()
		c.playingListeners.Dispatch(struct{}{}, nil)
	case media.EventPause, media.EventEnded:
		c.mu.Lock()
		c.playStartedAt = time.Time{}
		// frames rendered before the pause may still arrive
		c.lastUpdate = time.Now()
		c.mu.Unlock()
	}
}

func (c *Controller) markUpdate() {
	c.mu.Lock()
	c.lastUpdate = time.Now()
	c.mu.Unlock()
}

// watchUpdates dispatches the settled signal while the element has not
// reported an update for the quiescence interval.
func (c *Controller) watchUpdates(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	poll := max(c.cfg.NotUpdatingInterval/4, time.Millisecond)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if c.settledListeners.Len() == 0 {
				continue
			}
			c.mu.Lock()
			quiet := now.Sub(c.lastUpdate) >= c.cfg.NotUpdatingInterval
			c.mu.Unlock()
			if quiet {
				c.settledListeners.Dispatch(struct{}{}, nil)
			}
		}
	}
}

// sameMillisecond compares times at millisecond precision. A NaN target
// matches anything.
func sameMillisecond(target, observed float64) bool {
	if math.IsNaN(target) {
		return true
	}
	return math.Round(target*1000) == math.Round(observed*1000)
}
