package timecode

import (
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
)

// DefaultFramePattern names pre-rendered frames by zero-padded number.
const DefaultFramePattern = "%06d.png"

// DirSource serves pre-rendered frames from a directory, picking the file
// of the frame the element currently shows.
type DirSource struct {
	dir     string
	pattern string
	current func() int

	mu     sync.Mutex
	frame  int
	cached image.Image
}

// NewDirSource returns a FrameSource reading dir/pattern for the frame
// number reported by current. An empty pattern uses DefaultFramePattern.
func NewDirSource(dir, pattern string, current func() int) *DirSource {
	if pattern == "" {
		pattern = DefaultFramePattern
	}
	return &DirSource{dir: dir, pattern: pattern, current: current, frame: -1}
}

// Frame returns the image of the current frame, or nil when its file is
// missing or unreadable.
func (s *DirSource) Frame() image.Image {
	n := s.current()

	s.mu.Lock()
	defer s.mu.Unlock()
	if n == s.frame {
		return s.cached
	}
	img, err := imaging.Open(filepath.Join(s.dir, fmt.Sprintf(s.pattern, n)))
	if err != nil {
		img = nil
	}
	s.frame, s.cached = n, img
	return img
}
