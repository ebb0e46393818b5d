package player

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"testing/synctest"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/framesync/internal/media"
)

func TestIsSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"song.mp3", true},
		{"song.FLAC", true},
		{"clip.wav", true},
		{"movie.mp4", false},
		{"noext", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSupported(tt.path))
		})
	}
}

func TestSkipID3v2(t *testing.T) {
	tag := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 5}
	data := append(append(tag, []byte{1, 2, 3, 4, 5}...), []byte("fLaC")...)
	r := bytes.NewReader(data)

	require.NoError(t, skipID3v2(r))

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "fLaC", string(rest))
}

func TestSkipID3v2_NoTag(t *testing.T) {
	r := bytes.NewReader([]byte("fLaC0123456789"))

	require.NoError(t, skipID3v2(r))

	pos, _ := r.Seek(0, io.SeekCurrent)
	assert.Equal(t, int64(0), pos)
}

func TestResampleRatio(t *testing.T) {
	assert.InDelta(t, 1.0, resampleRatio(1, 1), 1e-12)
	assert.InDelta(t, 1.1, resampleRatio(1, 1.1), 1e-12)
	assert.InDelta(t, 48000.0/44100*0.9, resampleRatio(48000.0/44100, 0.9), 1e-12)
	assert.InDelta(t, 2.0, resampleRatio(0, 2), 1e-12)
}

func TestLevelToVolume(t *testing.T) {
	p := New("x.mp3")
	assert.Equal(t, -10.0, p.levelToVolume(0))
	assert.Equal(t, 0.0, p.levelToVolume(1))
	assert.InDelta(t, -1.0, p.levelToVolume(0.5), 1e-12)
}

func TestPlayer_UnloadedBehaviour(t *testing.T) {
	p := New("x.mp3")

	assert.Equal(t, Unloaded, p.State())
	assert.True(t, p.Paused())
	assert.Nil(t, p.Buffered())
	assert.Equal(t, 0.0, p.CurrentTime())
	assert.ErrorIs(t, p.Play(context.Background()), ErrNotLoaded)
}

func TestPlayer_Load_UnsupportedFormat(t *testing.T) {
	p := New("movie.mp4")

	err := p.Load(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestPlayer_SetPlaybackRate_StoredWithoutStream(t *testing.T) {
	p := New("x.mp3")

	p.SetPlaybackRate(1.25)
	p.SetPlaybackRate(0)

	assert.Equal(t, 1.25, p.PlaybackRate())
}

func TestPlayer_VolumeClamped(t *testing.T) {
	p := New("x.mp3")

	p.SetVolume(3)
	assert.Equal(t, 1.0, p.Volume())
	p.SetVolume(-1)
	assert.Equal(t, 0.0, p.Volume())

	p.SetMuted(true)
	assert.True(t, p.Muted())
}

func TestMonitorLoop_EmitsTimeUpdates(t *testing.T) {
	// The seek loop goroutine outlives the bubble, so build outside it.
	p := New("x.mp3", WithUpdateInterval(20*time.Millisecond))

	synctest.Test(t, func(t *testing.T) {
		updates := 0
		p.Subscribe(func(e media.Event) {
			if e.Type == media.EventTimeUpdate {
				updates++
			}
		})

		stop := make(chan struct{})
		go p.monitorLoop(stop, p.updateInterval)

		time.Sleep(110 * time.Millisecond)
		synctest.Wait()
		close(stop)
		synctest.Wait()

		assert.Equal(t, 5, updates)
	})
}

type failingSeekStreamer struct {
	err error
}

func (s *failingSeekStreamer) Stream(samples [][2]float64) (int, bool) { return 0, false }
func (s *failingSeekStreamer) Err() error                              { return nil }
func (s *failingSeekStreamer) Len() int                                { return 100 }
func (s *failingSeekStreamer) Position() int                           { return 100 }
func (s *failingSeekStreamer) Seek(int) error                          { return s.err }
func (s *failingSeekStreamer) Close() error                            { return nil }

func TestPlayer_Play_RewindErrorReturned(t *testing.T) {
	p := New("x.mp3")
	seekErr := errors.New("stream closed")
	p.streamer = &failingSeekStreamer{err: seekErr}
	p.ctrl = &beep.Ctrl{Streamer: p.streamer, Paused: true}
	p.state = Ended

	played := false
	p.Subscribe(func(e media.Event) {
		if e.Type == media.EventPlaying {
			played = true
		}
	})

	err := p.Play(context.Background())

	require.ErrorIs(t, err, seekErr)
	assert.Equal(t, Ended, p.State())
	assert.True(t, p.ctrl.Paused)
	assert.False(t, played)
}
