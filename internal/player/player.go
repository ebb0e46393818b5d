// Package player implements a media element on top of beep: an audio file
// decoded to a seekable stream, played through the speaker with a
// resampler providing variable playback rate.
package player

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"

	"github.com/llehouerou/framesync/internal/media"
)

// DefaultUpdateInterval is the time-update cadence while playing.
const DefaultUpdateInterval = time.Second / 60

// ErrNotLoaded is returned by operations that need loaded media.
var ErrNotLoaded = errors.New("media not loaded")

var (
	speakerInitialized bool
	speakerSampleRate  beep.SampleRate
	speakerMu          sync.Mutex
)

// Verify Player implements media.Element at compile time.
var _ media.Element = (*Player)(nil)

type Player struct {
	mu sync.Mutex

	path  string
	state State

	file      *os.File
	streamer  beep.StreamSeekCloser
	format    beep.Format
	resampler *beep.Resampler
	ctrl      *beep.Ctrl
	volume    *effects.Volume
	baseRatio float64
	rate      float64
	duration  time.Duration

	// generation identifies the stream currently attached to the speaker
	generation int
	detached   bool

	volumeLevel float64
	muted       bool

	updateInterval time.Duration
	stopMonitor    chan struct{}
	seekChan       chan float64

	handlersMu sync.Mutex
	handlers   map[int]func(media.Event)
	nextID     int
}

// Option configures a Player.
type Option func(*Player)

// WithUpdateInterval sets how often time updates are emitted while
// playing.
func WithUpdateInterval(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// New creates a player for the audio file at path. Nothing is read until
// Load is called.
func New(path string, opts ...Option) *Player {
	p := &Player{
		path:           path,
		state:          Unloaded,
		rate:           1,
		volumeLevel:    1,
		updateInterval: DefaultUpdateInterval,
		seekChan:       make(chan float64, 1),
		handlers:       make(map[int]func(media.Event)),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.seekLoop()
	return p
}

// Source returns the file path.
func (p *Player) Source() string { return p.path }

// State returns the element state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Duration returns the media length in seconds.
func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration.Seconds()
}

// Buffered returns the whole media once loaded: the stream is file backed.
func (p *Player) Buffered() []media.TimeRange {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.IsLoaded() {
		return nil
	}
	return []media.TimeRange{{Start: 0, End: p.duration.Seconds()}}
}

// Paused reports whether playback is not running.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state != Playing
}

// Subscribe registers an event handler.
func (p *Player) Subscribe(handler func(media.Event)) func() {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = handler
	return func() {
		p.handlersMu.Lock()
		delete(p.handlers, id)
		p.handlersMu.Unlock()
	}
}

func (p *Player) emit(t media.EventType, at float64) {
	e := media.Event{Type: t, Time: at, At: time.Now()}
	p.handlersMu.Lock()
	hs := make([]func(media.Event), 0, len(p.handlers))
	for i := 0; i < p.nextID; i++ {
		if h, ok := p.handlers[i]; ok {
			hs = append(hs, h)
		}
	}
	p.handlersMu.Unlock()
	for _, h := range hs {
		h(e)
	}
}
