// Package orchestrator drives a media sync controller from a host
// timeline, one tick per rendered frame.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/llehouerou/framesync/internal/frametime"
	"github.com/llehouerou/framesync/internal/mediasync"
	"github.com/llehouerou/framesync/internal/timeline"
)

// Controller is the part of mediasync.Controller the orchestrator drives.
type Controller interface {
	Play(ctx context.Context) error
	Stop()
	Paused() bool
	SyncToFrame(ctx context.Context, frame int) (mediasync.SyncResult, error)
	SeekToFrame(ctx context.Context, frame int) error
	SetDefaultPlaybackRate(rate float64)
	Converter() frametime.Converter
	UsesTimecode() bool
}

// Host is the timeline the media follows.
type Host interface {
	CurrentTime() float64
	Paused() bool
	Rate() float64
}

// Recorder receives every tick report.
type Recorder interface {
	Record(r Report)
}

// Orchestrator maps timeline time to media frames and keeps the
// controller on them.
type Orchestrator struct {
	ctrl      Controller
	host      Host
	clip      timeline.Clip
	log       log.FieldLogger
	recorders []Recorder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	bgErr     error
	starting  bool
	seeking   bool
	seekFrame int
	subs      []*Subscription
	closed    bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(o *Orchestrator) { o.log = logger }
}

// WithRecorder adds a report recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorders = append(o.recorders, r) }
}

// New creates an orchestrator placing the media at clip on host.
func New(ctrl Controller, host Host, clip timeline.Clip, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		ctrl:   ctrl,
		host:   host,
		clip:   clip,
		log:    log.StandardLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Tick brings the media in line with the host timeline.
//
// A failure of a background operation started by an earlier tick is
// returned first, so it is never lost. Outside the clip the media is
// stopped. A paused timeline stops the media and places it on the frame,
// through a background frame-exact seek when a timecode is available. A
// playing timeline sets the nominal rate to the remapped speed, starts
// playback in the background and soft-syncs.
func (o *Orchestrator) Tick(ctx context.Context) (Report, error) {
	rep := Report{At: time.Now()}
	if err := o.takeError(); err != nil {
		rep.Err = err
		o.publish(rep)
		return rep, err
	}

	t := o.host.CurrentTime()
	rep.TimelineTime = t
	if !o.clip.Contains(t) {
		rep.Action = ActionIdle
		if !o.ctrl.Paused() {
			o.ctrl.Stop()
			rep.Action = ActionStop
		}
		o.publish(rep)
		return rep, nil
	}

	media, speed := o.clip.MediaTime(t)
	rate := speed * o.host.Rate()
	rep.MediaTime, rep.Speed = media, speed
	rep.Frame = o.ctrl.Converter().FrameNumber(media, true)

	var err error
	switch {
	case o.host.Paused() || rate < mediasync.MinPlaybackRate:
		if !o.ctrl.Paused() {
			o.ctrl.Stop()
		}
		if o.ctrl.UsesTimecode() {
			rep.Action = ActionSeek
			o.seekInBackground(rep.Frame)
		} else {
			rep.Action = ActionSync
			rep.Sync, err = o.ctrl.SyncToFrame(ctx, rep.Frame)
		}
	default:
		o.ctrl.SetDefaultPlaybackRate(rate)
		if o.ctrl.Paused() {
			rep.Action = ActionPlay
			o.playInBackground()
		} else {
			rep.Action = ActionSync
			rep.Sync, err = o.ctrl.SyncToFrame(ctx, rep.Frame)
		}
	}

	if err != nil {
		err = fmt.Errorf("sync to frame %d: %w", rep.Frame, err)
		rep.Err = err
	}
	o.publish(rep)
	return rep, err
}

// playInBackground starts playback unless a start is already running.
func (o *Orchestrator) playInBackground() {
	o.mu.Lock()
	if o.starting || o.closed {
		o.mu.Unlock()
		return
	}
	o.starting = true
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		err := o.ctrl.Play(o.ctx)

		o.mu.Lock()
		o.starting = false
		o.mu.Unlock()
		o.background("play", 0, err)
	}()
}

// seekInBackground places the media on frame. While a seek runs, later
// frames replace the pending target and are caught up once it finishes.
func (o *Orchestrator) seekInBackground(frame int) {
	o.mu.Lock()
	o.seekFrame = frame
	if o.seeking || o.closed {
		o.mu.Unlock()
		return
	}
	o.seeking = true
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		for {
			o.mu.Lock()
			target := o.seekFrame
			o.mu.Unlock()

			err := o.ctrl.SeekToFrame(o.ctx, target)
			o.background("seek", target, err)

			o.mu.Lock()
			if o.seekFrame == target || o.ctx.Err() != nil {
				o.seeking = false
				o.mu.Unlock()
				return
			}
			o.mu.Unlock()
		}
	}()
}

// background records the outcome of a background operation. Expected
// races between operations are only logged.
func (o *Orchestrator) background(op string, frame int, err error) {
	if err == nil {
		return
	}
	entry := o.log.WithFields(log.Fields{"op": op, "frame": frame})
	if expectedRace(err) {
		entry.WithError(err).Debug("background operation superseded")
		return
	}
	entry.WithError(err).Error("background operation failed")

	o.mu.Lock()
	if o.bgErr == nil {
		o.bgErr = fmt.Errorf("background %s: %w", op, err)
	}
	subs := o.subsLocked()
	o.mu.Unlock()

	e := ErrorEvent{Operation: op, Frame: frame, Err: err}
	for _, s := range subs {
		s.sendError(e)
	}
}

func expectedRace(err error) bool {
	return errors.Is(err, mediasync.ErrAbortedBySubsequentSeek) ||
		errors.Is(err, mediasync.ErrAbortedBySeekToTimeRequest) ||
		errors.Is(err, mediasync.ErrAbortedByActivePlayingRequest) ||
		errors.Is(err, context.Canceled)
}

func (o *Orchestrator) takeError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	err := o.bgErr
	o.bgErr = nil
	return err
}

func (o *Orchestrator) publish(rep Report) {
	for _, r := range o.recorders {
		r.Record(rep)
	}
	o.mu.Lock()
	subs := o.subsLocked()
	o.mu.Unlock()
	for _, s := range subs {
		s.sendReport(rep)
	}
}

func (o *Orchestrator) subsLocked() []*Subscription {
	out := make([]*Subscription, len(o.subs))
	copy(out, o.subs)
	return out
}

// Subscribe returns a subscription to tick reports and background
// errors. Slow subscribers miss events rather than blocking ticks.
func (o *Orchestrator) Subscribe() *Subscription {
	s := newSubscription()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		s.close()
		return s
	}
	o.subs = append(o.subs, s)
	return s
}

// Unsubscribe removes and closes s.
func (o *Orchestrator) Unsubscribe(s *Subscription) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, sub := range o.subs {
		if sub == s {
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			s.close()
			return
		}
	}
}

// Close cancels background operations, waits for them and closes every
// subscription.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()

	o.mu.Lock()
	for _, s := range o.subs {
		s.close()
	}
	o.subs = nil
	o.mu.Unlock()
}
