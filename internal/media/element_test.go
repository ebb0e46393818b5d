package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffered(t *testing.T) {
	ranges := []TimeRange{{Start: 0, End: 2}, {Start: 5, End: 8}}

	assert.True(t, Buffered(ranges, 0))
	assert.True(t, Buffered(ranges, 2))
	assert.True(t, Buffered(ranges, 6.5))
	assert.False(t, Buffered(ranges, 3))
	assert.False(t, Buffered(nil, 0))
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "seeked", EventSeeked.String())
	assert.Equal(t, "timeupdate", EventTimeUpdate.String())
	assert.Equal(t, "unknown", EventType(99).String())
}

func TestMock_SeekEmitsEvents(t *testing.T) {
	m := NewMock("clip.mp4", 10)
	var got []EventType
	m.Subscribe(func(e Event) { got = append(got, e.Type) })

	m.SetCurrentTime(1.5)

	assert.Equal(t, []EventType{EventSeeked, EventTimeUpdate}, got)
	assert.Equal(t, 1.5, m.CurrentTime())
}

func TestMock_ManualSeek(t *testing.T) {
	m := NewMock("clip.mp4", 10)
	m.SetManualSeek(true)

	m.SetCurrentTime(3)
	assert.Equal(t, 0.0, m.CurrentTime())

	assert.True(t, m.CompleteSeek())
	assert.Equal(t, 3.0, m.CurrentTime())
	assert.False(t, m.CompleteSeek())
}

func TestMock_Unsubscribe(t *testing.T) {
	m := NewMock("clip.mp4", 10)
	calls := 0
	unsub := m.Subscribe(func(Event) { calls++ })

	_ = m.Play(context.Background())
	unsub()
	m.Pause()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, m.Subscribers())
}
