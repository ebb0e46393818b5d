package player

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"github.com/llehouerou/framesync/internal/media"
)

const (
	extMP3  = ".mp3"
	extFLAC = ".flac"
	extWAV  = ".wav"

	resampleQuality = 4
)

// IsSupported reports whether the file extension can be decoded.
func IsSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case extMP3, extFLAC, extWAV:
		return true
	}
	return false
}

// Load decodes the file and prepares a paused stream on the speaker.
func (p *Player) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Close()

	ext := strings.ToLower(filepath.Ext(p.path))
	if !IsSupported(p.path) {
		return fmt.Errorf("unsupported format: %s", ext)
	}

	f, err := os.Open(p.path)
	if err != nil {
		return err
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext {
	case extMP3:
		streamer, format, err = decodeMP3(f)
	case extFLAC:
		// Skip ID3v2 tag if present (some taggers add it to FLAC files)
		if err := skipID3v2(f); err != nil {
			f.Close()
			return err
		}
		streamer, format, err = flac.Decode(f)
	case extWAV:
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		f.Close()
		return err
	}

	if err := initSpeaker(format.SampleRate); err != nil {
		streamer.Close()
		f.Close()
		return err
	}

	p.mu.Lock()
	p.file = f
	p.streamer = streamer
	p.format = format
	p.duration = format.SampleRate.D(streamer.Len())
	p.baseRatio = float64(format.SampleRate) / float64(speakerSampleRate)
	p.resampler = beep.ResampleRatio(resampleQuality, p.baseRatio*p.rate, streamer)
	p.ctrl = &beep.Ctrl{Streamer: p.resampler, Paused: true}
	p.volume = &effects.Volume{Streamer: p.ctrl, Base: 2, Volume: p.levelToVolume(p.volumeLevel), Silent: p.muted}
	p.state = Paused
	p.mu.Unlock()

	p.attach()
	return nil
}

// attach queues the stream on the speaker. The stream leaves the speaker
// once exhausted, so playing after the end re-attaches it.
func (p *Player) attach() {
	p.mu.Lock()
	vol := p.volume
	p.detached = false
	p.generation++
	gen := p.generation
	p.mu.Unlock()
	if vol == nil {
		return
	}
	speaker.Play(beep.Seq(vol, beep.Callback(func() { p.handleEnded(gen) })))
}

func (p *Player) handleEnded(gen int) {
	// Runs on the speaker goroutine with the speaker lock held.
	go func() {
		p.mu.Lock()
		if gen != p.generation {
			p.mu.Unlock()
			return
		}
		p.detached = true
		if p.state != Playing {
			p.mu.Unlock()
			return
		}
		p.state = Ended
		p.stopMonitorLocked()
		end := p.duration.Seconds()
		p.mu.Unlock()
		p.emit(media.EventEnded, end)
	}()
}

// Close stops playback and releases resources.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Unloaded {
		return
	}

	p.stopMonitorLocked()
	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Streamer = nil
		speaker.Unlock()
	}
	if p.streamer != nil {
		p.streamer.Close()
		p.streamer = nil
	}
	if p.file != nil {
		p.file.Close()
		p.file = nil
	}

	p.generation++
	p.ctrl = nil
	p.resampler = nil
	p.volume = nil
	p.state = Unloaded
}

func initSpeaker(rate beep.SampleRate) error {
	speakerMu.Lock()
	defer speakerMu.Unlock()
	if speakerInitialized {
		return nil
	}
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return err
	}
	speakerSampleRate = rate
	speakerInitialized = true
	return nil
}

// skipID3v2 skips an ID3v2 tag if present at the beginning of the file.
// Some FLAC files have ID3v2 tags prepended, which the FLAC decoder doesn't handle.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := r.Read(header)
	if err != nil {
		return err
	}
	if n < 10 || string(header[0:3]) != "ID3" {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	// ID3v2 size is a syncsafe integer: 7 bits per byte
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])

	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
