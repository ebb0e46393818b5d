package player

import (
	"context"
	"fmt"
	"time"

	"github.com/gopxl/beep/v2/speaker"

	"github.com/llehouerou/framesync/internal/media"
)

// Play resumes playback and emits EventPlaying.
func (p *Player) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	if !p.state.IsLoaded() || p.ctrl == nil {
		p.mu.Unlock()
		return ErrNotLoaded
	}
	if p.state == Playing {
		p.mu.Unlock()
		return nil
	}
	if p.state == Ended {
		speaker.Lock()
		err := p.streamer.Seek(0)
		speaker.Unlock()
		if err != nil {
			p.mu.Unlock()
			return fmt.Errorf("rewinding ended stream: %w", err)
		}
	}
	reattach := p.detached
	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
	p.state = Playing
	p.startMonitorLocked()
	p.mu.Unlock()

	if reattach {
		p.attach()
	}
	p.emit(media.EventPlaying, p.CurrentTime())
	return nil
}

// Pause pauses playback and emits EventPause.
func (p *Player) Pause() {
	p.mu.Lock()
	if !p.state.CanPause() || p.ctrl == nil {
		p.mu.Unlock()
		return
	}
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
	p.state = Paused
	p.stopMonitorLocked()
	p.mu.Unlock()

	p.emit(media.EventPause, p.CurrentTime())
}

// CurrentTime returns the playback position in seconds.
func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	streamer := p.streamer
	format := p.format
	p.mu.Unlock()
	if streamer == nil {
		return 0
	}
	// Read position without the speaker lock - may be slightly stale but
	// avoids deadlocks with the speaker callback.
	return format.SampleRate.D(streamer.Position()).Seconds()
}

// SetCurrentTime requests a seek. Non-blocking: only the most recent
// request is applied; EventSeeked and EventTimeUpdate follow.
func (p *Player) SetCurrentTime(seconds float64) {
	select {
	case p.seekChan <- seconds:
	default:
		// Channel full, drain and send new value
		select {
		case <-p.seekChan:
		default:
		}
		select {
		case p.seekChan <- seconds:
		default:
		}
	}
}

// seekLoop processes seek requests sequentially.
func (p *Player) seekLoop() {
	for seconds := range p.seekChan {
		p.doSeek(seconds)
	}
}

func (p *Player) doSeek(seconds float64) {
	p.mu.Lock()
	if p.streamer == nil || !p.state.IsLoaded() {
		p.mu.Unlock()
		return
	}
	pos := p.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	pos = min(max(pos, 0), p.streamer.Len())

	speaker.Lock()
	err := p.streamer.Seek(pos)
	speaker.Unlock()
	if p.state == Ended && pos < p.streamer.Len() {
		p.state = Paused
	}
	p.mu.Unlock()

	if err != nil {
		return
	}
	landed := p.CurrentTime()
	p.emit(media.EventSeeked, landed)
	p.emit(media.EventTimeUpdate, landed)
}

// PlaybackRate returns the playback speed multiplier.
func (p *Player) PlaybackRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// SetPlaybackRate changes the playback speed by adjusting the resampling
// ratio. Non-positive rates are ignored.
func (p *Player) SetPlaybackRate(rate float64) {
	if rate <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = rate
	if p.resampler != nil {
		speaker.Lock()
		p.resampler.SetRatio(resampleRatio(p.baseRatio, rate))
		speaker.Unlock()
	}
}

// resampleRatio combines the sample-rate conversion ratio with the
// playback speed.
func resampleRatio(base, rate float64) float64 {
	if base <= 0 {
		base = 1
	}
	return base * rate
}

func (p *Player) startMonitorLocked() {
	if p.stopMonitor != nil {
		return
	}
	stop := make(chan struct{})
	p.stopMonitor = stop
	go p.monitorLoop(stop, p.updateInterval)
}

func (p *Player) stopMonitorLocked() {
	if p.stopMonitor == nil {
		return
	}
	close(p.stopMonitor)
	p.stopMonitor = nil
}

// monitorLoop emits a time update for every rendered interval while
// playing.
func (p *Player) monitorLoop(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.emit(media.EventTimeUpdate, p.CurrentTime())
		case <-stop:
			return
		}
	}
}
