package mediasync

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/framesync/internal/media"
)

func TestTrack_FollowsPrimary(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		audioEl := media.NewMock("voice.wav", 10)
		audio := newLoaded(t, audioEl)
		defer audio.Destroy()

		el := media.NewMock("clip.mp4", 10)
		c := newLoaded(t, el, WithAudioTrack(NewTrack(audio)))
		defer c.Destroy()
		ctx := context.Background()

		require.NoError(t, c.SeekToFrame(ctx, 45))
		assert.Equal(t, el.SetTimeCalls(), audioEl.SetTimeCalls())

		require.NoError(t, c.Play(ctx))
		assert.False(t, audioEl.Paused())

		c.Stop()
		assert.True(t, audioEl.Paused())
	})
}

func TestTrack_SyncHardSeeksWhenPaused(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		audioEl := media.NewMock("voice.wav", 10)
		audio := newLoaded(t, audioEl)
		defer audio.Destroy()

		track := NewTrack(audio)
		track.SyncToFrame(60)
		// the seek waits for the element to settle first
		time.Sleep(time.Second)
		synctest.Wait()

		require.Len(t, audioEl.SetTimeCalls(), 1)
		assert.Equal(t, 60, audio.Converter().FrameNumber(audioEl.CurrentTime(), false))
		assert.Equal(t, StatePolling, audio.State())
	})
}

func TestTrack_HardSeekWhilePlaying(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		audioEl := media.NewMock("voice.wav", 10)
		audio := newLoaded(t, audioEl)
		defer audio.Destroy()

		el := media.NewMock("clip.mp4", 10)
		c := newLoaded(t, el, WithAudioTrack(NewTrack(audio)))
		defer c.Destroy()
		ctx := context.Background()
		require.NoError(t, c.Play(ctx))

		start := time.Now()
		res, err := c.SyncToFrame(ctx, 120)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, StateSeeking, res.Step)
		assert.Less(t, elapsed, time.Second, "resuming the track must not wait for the play timeout")
		assert.False(t, el.Paused())
		assert.Positive(t, audioEl.PauseCalls())

		// let the forwarded track sync finish
		time.Sleep(time.Second)
		synctest.Wait()
		assert.False(t, audioEl.Paused())
		assert.InDelta(t, el.CurrentTime(), audioEl.CurrentTime(), 1e-9)
	})
}
