package media

import (
	"context"
	"sync"
	"time"
)

// Mock is a test double for Element. Seeks complete immediately unless
// manual seeking is enabled, in which case CompleteSeek must be called.
type Mock struct {
	mu sync.Mutex

	source      string
	duration    float64
	currentTime float64
	rate        float64
	paused      bool
	buffered    []TimeRange
	loadErr     error
	playErr     error
	silentPlay  bool
	manualSeek  bool
	pendingSeek *float64

	loadCalls     int
	playCalls     int
	pauseCalls    int
	setTimeCalls  []float64
	setRateCalls  []float64
	seekResolver  func(target float64) float64
	handlers      map[int]func(Event)
	nextHandlerID int
}

// NewMock creates a loaded-on-demand mock with the given duration in
// seconds, fully buffered.
func NewMock(source string, duration float64) *Mock {
	return &Mock{
		source:   source,
		duration: duration,
		rate:     1,
		paused:   true,
		buffered: []TimeRange{{Start: 0, End: duration}},
		handlers: make(map[int]func(Event)),
	}
}

func (m *Mock) Source() string { return m.source }

func (m *Mock) Load(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls++
	return m.loadErr
}

func (m *Mock) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *Mock) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// SetCurrentTime records the seek and, unless manual seeking is enabled,
// applies it and emits seeked and timeupdate events.
func (m *Mock) SetCurrentTime(seconds float64) {
	m.mu.Lock()
	m.setTimeCalls = append(m.setTimeCalls, seconds)
	if m.manualSeek {
		m.pendingSeek = &seconds
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.applySeek(seconds)
}

func (m *Mock) applySeek(seconds float64) {
	m.mu.Lock()
	landed := seconds
	if m.seekResolver != nil {
		landed = m.seekResolver(seconds)
	}
	m.currentTime = landed
	m.mu.Unlock()

	m.emit(Event{Type: EventSeeked, Time: landed})
	m.emit(Event{Type: EventTimeUpdate, Time: landed})
}

func (m *Mock) PlaybackRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

func (m *Mock) SetPlaybackRate(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = rate
	m.setRateCalls = append(m.setRateCalls, rate)
}

func (m *Mock) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *Mock) Buffered() []TimeRange {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TimeRange, len(m.buffered))
	copy(out, m.buffered)
	return out
}

// Play starts playback. Like a real element it only emits EventPlaying
// on the paused to playing transition.
func (m *Mock) Play(_ context.Context) error {
	m.mu.Lock()
	m.playCalls++
	if m.playErr != nil {
		err := m.playErr
		m.mu.Unlock()
		return err
	}
	wasPaused := m.paused
	m.paused = false
	silent := m.silentPlay
	t := m.currentTime
	m.mu.Unlock()

	if wasPaused && !silent {
		m.emit(Event{Type: EventPlaying, Time: t})
	}
	return nil
}

func (m *Mock) Pause() {
	m.mu.Lock()
	m.pauseCalls++
	wasPlaying := !m.paused
	m.paused = true
	t := m.currentTime
	m.mu.Unlock()

	if wasPlaying {
		m.emit(Event{Type: EventPause, Time: t})
	}
}

func (m *Mock) Subscribe(handler func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.handlers[id] = handler
	return func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}
}

func (m *Mock) emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.mu.Lock()
	hs := make([]func(Event), 0, len(m.handlers))
	for i := 0; i < m.nextHandlerID; i++ {
		if h, ok := m.handlers[i]; ok {
			hs = append(hs, h)
		}
	}
	m.mu.Unlock()
	for _, h := range hs {
		h(e)
	}
}

// Test helpers

// SetLoadError makes Load fail with err.
func (m *Mock) SetLoadError(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

// SetPlayError makes Play fail with err.
func (m *Mock) SetPlayError(err error) {
	m.mu.Lock()
	m.playErr = err
	m.mu.Unlock()
}

// SetSilentPlay makes Play succeed without emitting EventPlaying.
func (m *Mock) SetSilentPlay(silent bool) {
	m.mu.Lock()
	m.silentPlay = silent
	m.mu.Unlock()
}

// SetManualSeek holds seeks until CompleteSeek is called.
func (m *Mock) SetManualSeek(manual bool) {
	m.mu.Lock()
	m.manualSeek = manual
	m.mu.Unlock()
}

// SetSeekResolver maps requested seek targets to the time actually reached.
func (m *Mock) SetSeekResolver(fn func(target float64) float64) {
	m.mu.Lock()
	m.seekResolver = fn
	m.mu.Unlock()
}

// SetBuffered replaces the buffered ranges.
func (m *Mock) SetBuffered(ranges ...TimeRange) {
	m.mu.Lock()
	m.buffered = ranges
	m.mu.Unlock()
}

// SetPaused changes the paused flag without emitting events, as an
// external actor would.
func (m *Mock) SetPaused(paused bool) {
	m.mu.Lock()
	m.paused = paused
	m.mu.Unlock()
}

// SetPosition moves the position without emitting events.
func (m *Mock) SetPosition(seconds float64) {
	m.mu.Lock()
	m.currentTime = seconds
	m.mu.Unlock()
}

// CompleteSeek applies a seek held by manual seeking. It reports whether a
// seek was pending.
func (m *Mock) CompleteSeek() bool {
	m.mu.Lock()
	p := m.pendingSeek
	m.pendingSeek = nil
	m.mu.Unlock()
	if p == nil {
		return false
	}
	m.applySeek(*p)
	return true
}

// EmitTimeUpdate simulates a rendered frame at the current position.
func (m *Mock) EmitTimeUpdate() {
	m.emit(Event{Type: EventTimeUpdate, Time: m.CurrentTime()})
}

// Emit delivers an arbitrary event to subscribers.
func (m *Mock) Emit(e Event) { m.emit(e) }

func (m *Mock) LoadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}

func (m *Mock) PlayCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCalls
}

func (m *Mock) PauseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauseCalls
}

func (m *Mock) SetTimeCalls() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.setTimeCalls))
	copy(out, m.setTimeCalls)
	return out
}

func (m *Mock) SetRateCalls() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.setRateCalls))
	copy(out, m.setRateCalls)
	return out
}

// Subscribers returns the number of registered handlers.
func (m *Mock) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

// Verify Mock implements Element at compile time.
var _ Element = (*Mock)(nil)
