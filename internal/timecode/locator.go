package timecode

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/llehouerou/framesync/internal/frametime"
)

const (
	// DefaultMaxAttempts bounds the seek/verify iterations.
	DefaultMaxAttempts = 30
	// DefaultSettleDelay approximates one animation frame.
	DefaultSettleDelay = 16 * time.Millisecond
)

// ErrLocateTimeout is returned when every attempt decoded a wrong frame.
var ErrLocateTimeout = errors.New("timecode frame locate timeout")

// LocateError reports the frame reached when the retry budget ran out.
type LocateError struct {
	Target   int
	Decoded  int
	Attempts int
}

func (e *LocateError) Error() string {
	return fmt.Sprintf("%v: wanted frame %d, still at frame %d after %d attempts",
		ErrLocateTimeout, e.Target, e.Decoded, e.Attempts)
}

func (e *LocateError) Unwrap() error { return ErrLocateTimeout }

// SeekFunc positions the media element at seconds.
type SeekFunc func(ctx context.Context, seconds float64) error

// FrameReader decodes the frame number currently displayed.
type FrameReader interface {
	ReadFrame() (int, bool)
}

// Result describes the outcome of a locate.
type Result struct {
	Frame    int
	Verified bool
	Attempts int
	SeekTime float64
}

// Locator seeks repeatedly until the decoded timecode matches the target.
type Locator struct {
	seek        SeekFunc
	reader      FrameReader
	framerate   float64
	maxAttempts int
	settleDelay time.Duration
	log         log.FieldLogger
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithMaxAttempts overrides the retry budget.
func WithMaxAttempts(n int) LocatorOption {
	return func(l *Locator) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithSettleDelay overrides the wait after convergence.
func WithSettleDelay(d time.Duration) LocatorOption {
	return func(l *Locator) { l.settleDelay = d }
}

// WithLogger sets the logger.
func WithLogger(logger log.FieldLogger) LocatorOption {
	return func(l *Locator) { l.log = logger }
}

func NewLocator(seek SeekFunc, reader FrameReader, framerate float64, opts ...LocatorOption) *Locator {
	if framerate <= 0 {
		framerate = frametime.DefaultFramerate
	}
	l := &Locator{
		seek:        seek,
		reader:      reader,
		framerate:   framerate,
		maxAttempts: DefaultMaxAttempts,
		settleDelay: DefaultSettleDelay,
		log:         log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Seek places the element on frame. Each miss nudges the seek time a
// quarter frame toward the target. An undecodable frame ends the search
// without error since nothing can be verified; running out of attempts
// while reading wrong frames returns a *LocateError.
func (l *Locator) Seek(ctx context.Context, frame int) (Result, error) {
	seekTime := frametime.FrameNumberToVideoElementTime(frame, l.framerate)
	nudge := 1 / l.framerate / 4

	var res Result
	decodable := false
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if err := l.seek(ctx, seekTime); err != nil {
			return res, err
		}
		res.Attempts = attempt
		res.SeekTime = seekTime

		decoded, ok := l.reader.ReadFrame()
		if !ok {
			decodable = false
			l.log.WithField("frame", frame).Debug("timecode not readable, skipping verification")
			break
		}
		decodable = true
		res.Frame = decoded

		if decoded == frame {
			res.Verified = true
			return res, l.settle(ctx)
		}

		if decoded < frame {
			seekTime += nudge
		} else {
			seekTime = max(seekTime-nudge, 0)
		}
		l.log.WithFields(log.Fields{
			"frame":   frame,
			"decoded": decoded,
			"attempt": attempt,
			"next":    seekTime,
		}).Debug("timecode mismatch, nudging seek time")
	}

	if decodable {
		return res, &LocateError{Target: frame, Decoded: res.Frame, Attempts: res.Attempts}
	}
	return res, nil
}

// settle waits one animation frame so the caller observes a fully
// presented frame.
func (l *Locator) settle(ctx context.Context) error {
	if l.settleDelay <= 0 {
		return nil
	}
	t := time.NewTimer(l.settleDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
