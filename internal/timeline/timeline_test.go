package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClocked(duration float64, opts ...Option) (*Timeline, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	return New(duration, append([]Option{WithClock(clock.now)}, opts...)...), clock
}

func TestTimeline_PlayPause(t *testing.T) {
	tl, clock := newClocked(10)
	assert.True(t, tl.Paused())

	tl.Play()
	clock.advance(1500 * time.Millisecond)
	assert.InDelta(t, 1.5, tl.CurrentTime(), 1e-9)
	assert.False(t, tl.Paused())

	tl.Pause()
	clock.advance(time.Second)
	assert.InDelta(t, 1.5, tl.CurrentTime(), 1e-9)
	assert.True(t, tl.Paused())
}

func TestTimeline_StopsAtEnd(t *testing.T) {
	tl, clock := newClocked(2)

	tl.Play()
	clock.advance(5 * time.Second)

	assert.InDelta(t, 2.0, tl.CurrentTime(), 1e-9)
	assert.True(t, tl.Paused())

	tl.Play()
	assert.InDelta(t, 0.0, tl.CurrentTime(), 1e-9, "playing at the end restarts")
}

func TestTimeline_SeekTo(t *testing.T) {
	tl, clock := newClocked(10)
	tl.Play()
	clock.advance(time.Second)

	tl.SeekTo(4)
	clock.advance(time.Second)
	assert.InDelta(t, 5.0, tl.CurrentTime(), 1e-9)

	tl.SeekTo(-3)
	assert.InDelta(t, 0.0, tl.CurrentTime(), 1e-9)
	tl.SeekTo(30)
	assert.InDelta(t, 10.0, tl.CurrentTime(), 1e-9)
}

func TestTimeline_Rate(t *testing.T) {
	tl, clock := newClocked(10, WithRate(2))
	tl.Play()
	clock.advance(time.Second)
	assert.InDelta(t, 2.0, tl.CurrentTime(), 1e-9)

	tl.SetRate(0.5)
	clock.advance(time.Second)
	assert.InDelta(t, 2.5, tl.CurrentTime(), 1e-9)
	assert.InDelta(t, 0.5, tl.Rate(), 1e-9)

	tl.SetRate(0)
	assert.InDelta(t, 0.5, tl.Rate(), 1e-9)
}

func TestTimeline_Toggle(t *testing.T) {
	tl, _ := newClocked(10)

	tl.Toggle()
	assert.False(t, tl.Paused())
	tl.Toggle()
	assert.True(t, tl.Paused())
}

func TestRemap_MediaTime(t *testing.T) {
	r, err := NewRemap(
		Keyframe{At: 4, Media: 6},
		Keyframe{At: 0, Media: 0},
		Keyframe{At: 2, Media: 2},
	)
	require.NoError(t, err)

	tests := []struct {
		name      string
		at        float64
		wantMedia float64
		wantSpeed float64
	}{
		{"start", 0, 0, 1},
		{"first segment", 1, 1, 1},
		{"on keyframe", 2, 2, 1},
		{"fast segment", 3, 4, 2},
		{"last keyframe", 4, 6, 2},
		{"extrapolated after", 5, 8, 2},
		{"extrapolated before", -1, -1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media, speed := r.MediaTime(tt.at)
			assert.InDelta(t, tt.wantMedia, media, 1e-9)
			assert.InDelta(t, tt.wantSpeed, speed, 1e-9)
		})
	}
}

func TestRemap_Identity(t *testing.T) {
	var r *Remap
	media, speed := r.MediaTime(3.5)
	assert.InDelta(t, 3.5, media, 1e-9)
	assert.InDelta(t, 1.0, speed, 1e-9)

	single, err := NewRemap(Keyframe{At: 1, Media: 11})
	require.NoError(t, err)
	media, speed = single.MediaTime(2)
	assert.InDelta(t, 12.0, media, 1e-9)
	assert.InDelta(t, 1.0, speed, 1e-9)
}

func TestRemap_FreezeFrame(t *testing.T) {
	r, err := NewRemap(Keyframe{At: 0, Media: 5}, Keyframe{At: 2, Media: 5})
	require.NoError(t, err)

	media, speed := r.MediaTime(1)
	assert.InDelta(t, 5.0, media, 1e-9)
	assert.Zero(t, speed)
}

func TestNewRemap_Invalid(t *testing.T) {
	_, err := NewRemap(Keyframe{At: 1, Media: 0}, Keyframe{At: 1, Media: 2})
	require.ErrorIs(t, err, ErrInvalidRemap)

	_, err = NewRemap(Keyframe{At: 0, Media: 3}, Keyframe{At: 1, Media: 2})
	require.ErrorIs(t, err, ErrInvalidRemap)
}

func TestClip(t *testing.T) {
	r, err := NewRemap(Keyframe{At: 0, Media: 0}, Keyframe{At: 1, Media: 0.5})
	require.NoError(t, err)
	c := Clip{Start: 2, End: 6, Remap: r}

	assert.False(t, c.Contains(1.9))
	assert.True(t, c.Contains(2))
	assert.False(t, c.Contains(6))

	media, speed := c.MediaTime(3)
	assert.InDelta(t, 0.5, media, 1e-9)
	assert.InDelta(t, 0.5, speed, 1e-9)

	media, _ = c.MediaTime(0)
	assert.Zero(t, media, "media time never goes negative")
}
