//go:build !windows

// Package stderr captures output that C audio libraries (ALSA, oto)
// write directly to file descriptor 2, bypassing Go's os.Stderr, and
// forwards it to the log so it cannot corrupt the TUI layout.
package stderr

import (
	"bufio"
	"os"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// Capture redirects file descriptor 2 until Stop is called.
type Capture struct {
	orig int
	r, w *os.File
	done chan struct{}
}

// Start begins capturing stderr output into logger.
// Must be called early in main(), before any C library initialization.
// Returns an error if capture cannot be set up, but the program can continue
// without stderr capture (errors will just go to the original stderr).
func Start(logger log.FieldLogger) (*Capture, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	orig, err := syscall.Dup(int(os.Stderr.Fd()))
	if err != nil {
		r.Close()
		w.Close()
		return nil, err
	}

	if err := syscall.Dup2(int(w.Fd()), int(os.Stderr.Fd())); err != nil {
		syscall.Close(orig)
		r.Close()
		w.Close()
		return nil, err
	}

	c := &Capture{orig: orig, r: r, w: w, done: make(chan struct{})}
	go func() {
		defer close(c.done)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				logger.WithField("source", "stderr").Warn(line)
			}
		}
	}()

	return c, nil
}

// WriteOriginal writes directly to the original stderr, bypassing capture.
// Useful for fatal errors that must be visible even if TUI is running.
func (c *Capture) WriteOriginal(msg string) {
	_, _ = syscall.Write(c.orig, []byte(msg))
}

// Stop restores the original stderr and waits until every captured line
// has been logged.
func (c *Capture) Stop() {
	_ = syscall.Dup2(c.orig, int(os.Stderr.Fd()))
	_ = syscall.Close(c.orig)

	c.w.Close()
	<-c.done
	c.r.Close()
}
