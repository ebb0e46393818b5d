package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/framesync/internal/frametime"
	"github.com/llehouerou/framesync/internal/mediasync"
	"github.com/llehouerou/framesync/internal/timeline"
)

type fakeController struct {
	mu         sync.Mutex
	paused     bool
	timecode   bool
	playErr    error
	seekErr    error
	syncErr    error
	plays      int
	stops      int
	syncFrames []int
	seekFrames []int
	rates      []float64
}

func newFakeController() *fakeController {
	return &fakeController{paused: true}
}

func (f *fakeController) Play(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	if f.playErr != nil {
		return f.playErr
	}
	f.paused = false
	return nil
}

func (f *fakeController) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.paused = true
}

func (f *fakeController) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeController) SyncToFrame(_ context.Context, frame int) (mediasync.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncFrames = append(f.syncFrames, frame)
	res := mediasync.SyncResult{ActualFrameNumber: frame - 1, ResolvedFrameNumber: frame, Step: mediasync.StateMeasuring}
	return res, f.syncErr
}

func (f *fakeController) SeekToFrame(_ context.Context, frame int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seekFrames = append(f.seekFrames, frame)
	return f.seekErr
}

func (f *fakeController) SetDefaultPlaybackRate(rate float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rates = append(f.rates, rate)
}

func (f *fakeController) Converter() frametime.Converter {
	return frametime.Converter{Framerate: 30}
}

func (f *fakeController) UsesTimecode() bool { return f.timecode }

type fakeHost struct {
	mu     sync.Mutex
	time   float64
	paused bool
	rate   float64
}

func (h *fakeHost) CurrentTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.time
}

func (h *fakeHost) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

func (h *fakeHost) Rate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rate
}

type recorder struct {
	mu      sync.Mutex
	reports []Report
}

func (r *recorder) Record(rep Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
}

func newOrchestrator(t *testing.T, ctrl *fakeController, host *fakeHost, opts ...Option) *Orchestrator {
	t.Helper()
	logger, _ := test.NewNullLogger()
	clip := timeline.Clip{Start: 1, End: 11}
	return New(ctrl, host, clip, append([]Option{WithLogger(logger)}, opts...)...)
}

func TestTick_OutsideClip(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := newFakeController()
		host := &fakeHost{time: 0.5, rate: 1}
		o := newOrchestrator(t, ctrl, host)
		defer o.Close()

		rep, err := o.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ActionIdle, rep.Action)
		assert.Zero(t, ctrl.stops)

		ctrl.paused = false
		rep, err = o.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ActionStop, rep.Action)
		assert.Equal(t, 1, ctrl.stops)
		assert.Empty(t, ctrl.syncFrames)
	})
}

func TestTick_PausedTimelineSyncs(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := newFakeController()
		ctrl.paused = false
		host := &fakeHost{time: 2, paused: true, rate: 1}
		o := newOrchestrator(t, ctrl, host)
		defer o.Close()

		rep, err := o.Tick(context.Background())

		require.NoError(t, err)
		assert.Equal(t, ActionSync, rep.Action)
		assert.Equal(t, 30, rep.Frame)
		assert.Equal(t, 1, ctrl.stops)
		assert.Equal(t, []int{30}, ctrl.syncFrames)
	})
}

func TestTick_PausedTimelineWithTimecodeSeeksInBackground(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := newFakeController()
		ctrl.timecode = true
		host := &fakeHost{time: 2, paused: true, rate: 1}
		o := newOrchestrator(t, ctrl, host)
		defer o.Close()

		rep, err := o.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ActionSeek, rep.Action)

		synctest.Wait()
		assert.Equal(t, []int{30}, ctrl.seekFrames)
		assert.Empty(t, ctrl.syncFrames)
	})
}

func TestTick_BackgroundErrorRaisedNextTick(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := newFakeController()
		ctrl.timecode = true
		ctrl.seekErr = errors.New("decoder stalled")
		host := &fakeHost{time: 2, paused: true, rate: 1}
		o := newOrchestrator(t, ctrl, host)
		defer o.Close()
		sub := o.Subscribe()

		_, err := o.Tick(context.Background())
		require.NoError(t, err)
		synctest.Wait()

		_, err = o.Tick(context.Background())
		require.ErrorIs(t, err, ctrl.seekErr)

		e := <-sub.Errors
		assert.Equal(t, "seek", e.Operation)
		assert.Equal(t, 30, e.Frame)

		// raised once
		ctrl.mu.Lock()
		ctrl.seekErr = nil
		ctrl.mu.Unlock()
		_, err = o.Tick(context.Background())
		require.NoError(t, err)
	})
}

func TestTick_SupersededSeekIsNotAnError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := newFakeController()
		ctrl.timecode = true
		ctrl.seekErr = &mediasync.SeekAbortedError{Code: 1, SupersededBy: 2}
		host := &fakeHost{time: 2, paused: true, rate: 1}
		o := newOrchestrator(t, ctrl, host)
		defer o.Close()

		_, err := o.Tick(context.Background())
		require.NoError(t, err)
		synctest.Wait()

		_, err = o.Tick(context.Background())
		require.NoError(t, err)
	})
}

func TestTick_PlayingStartsPlaybackThenSyncs(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := newFakeController()
		host := &fakeHost{time: 3, rate: 1}
		o := newOrchestrator(t, ctrl, host)
		defer o.Close()
		ctx := context.Background()

		rep, err := o.Tick(ctx)
		require.NoError(t, err)
		assert.Equal(t, ActionPlay, rep.Action)
		synctest.Wait()
		assert.Equal(t, 1, ctrl.plays)

		rep, err = o.Tick(ctx)
		require.NoError(t, err)
		assert.Equal(t, ActionSync, rep.Action)
		assert.Equal(t, []int{60}, ctrl.syncFrames)
		assert.Equal(t, 1, rep.Drift())
		assert.Equal(t, []float64{1, 1}, ctrl.rates)
	})
}

func TestTick_RemapSetsNominalRate(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := newFakeController()
		ctrl.paused = false
		host := &fakeHost{time: 3, rate: 1}
		remap, err := timeline.NewRemap(
			timeline.Keyframe{At: 0, Media: 0},
			timeline.Keyframe{At: 4, Media: 6},
		)
		require.NoError(t, err)
		logger, _ := test.NewNullLogger()
		o := New(ctrl, host, timeline.Clip{Start: 1, End: 11, Remap: remap}, WithLogger(logger))
		defer o.Close()

		rep, err := o.Tick(context.Background())

		require.NoError(t, err)
		assert.InDelta(t, 3.0, rep.MediaTime, 1e-9)
		assert.InDelta(t, 1.5, rep.Speed, 1e-9)
		assert.Equal(t, []float64{1.5}, ctrl.rates)
		assert.Equal(t, []int{90}, ctrl.syncFrames)
	})
}

func TestTick_SpeedBelowMinimumHoldsFrame(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := newFakeController()
		ctrl.paused = false
		host := &fakeHost{time: 3, rate: 0.1}
		o := newOrchestrator(t, ctrl, host)
		defer o.Close()

		rep, err := o.Tick(context.Background())

		require.NoError(t, err)
		assert.Equal(t, ActionSync, rep.Action)
		assert.Equal(t, 1, ctrl.stops)
		assert.Empty(t, ctrl.rates)
	})
}

func TestTick_BackgroundPlayError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := newFakeController()
		ctrl.playErr = &mediasync.PlayError{Err: errors.New("no output device")}
		host := &fakeHost{time: 3, rate: 1}
		o := newOrchestrator(t, ctrl, host)
		defer o.Close()

		_, err := o.Tick(context.Background())
		require.NoError(t, err)
		synctest.Wait()

		rep, err := o.Tick(context.Background())
		require.ErrorIs(t, err, mediasync.ErrPlay)
		assert.Equal(t, err, rep.Err)
	})
}

func TestTick_SyncErrorReturned(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := newFakeController()
		ctrl.syncErr = mediasync.ErrSeekTimeout
		host := &fakeHost{time: 2, paused: true, rate: 1}
		o := newOrchestrator(t, ctrl, host)
		defer o.Close()

		rep, err := o.Tick(context.Background())

		require.ErrorIs(t, err, mediasync.ErrSeekTimeout)
		assert.ErrorIs(t, rep.Err, mediasync.ErrSeekTimeout)
	})
}

func TestTick_Recorders(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := newFakeController()
		host := &fakeHost{time: 2, paused: true, rate: 1}
		rec := &recorder{}
		o := newOrchestrator(t, ctrl, host, WithRecorder(rec))
		defer o.Close()

		for range 3 {
			_, err := o.Tick(context.Background())
			require.NoError(t, err)
		}

		assert.Len(t, rec.reports, 3)
	})
}

func TestSubscription_ReceivesReports(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := newFakeController()
		host := &fakeHost{time: 2, paused: true, rate: 1}
		o := newOrchestrator(t, ctrl, host)
		sub := o.Subscribe()

		_, err := o.Tick(context.Background())
		require.NoError(t, err)

		rep := <-sub.Reports
		assert.Equal(t, 30, rep.Frame)

		o.Close()
		<-sub.Done
		<-o.Subscribe().Done
	})
}

func TestSubscription_Unsubscribe(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		o := newOrchestrator(t, newFakeController(), &fakeHost{rate: 1})
		defer o.Close()
		sub := o.Subscribe()

		o.Unsubscribe(sub)
		<-sub.Done

		_, err := o.Tick(context.Background())
		require.NoError(t, err)
		select {
		case <-sub.Reports:
			t.Fatal("unsubscribed subscription received a report")
		default:
		}
	})
}

func TestSubscription_NonBlocking_DropsWhenFull(t *testing.T) {
	sub := newSubscription()

	for range eventBufferSize + 5 {
		sub.sendReport(Report{})
	}

	count := 0
	for {
		select {
		case <-sub.Reports:
			count++
		default:
			assert.Equal(t, eventBufferSize, count)
			return
		}
	}
}
