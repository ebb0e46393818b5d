package timecode

import (
	"image"

	"github.com/disintegration/imaging"
)

// FrameSource provides the currently rendered frame. Frame returns nil
// while the renderer is not ready.
type FrameSource interface {
	Frame() image.Image
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func() image.Image

func (f FrameSourceFunc) Frame() image.Image { return f() }

// ImageSampler reads the timecode of rendered frames.
type ImageSampler struct {
	source   FrameSource
	settings Settings
	asset    Size
	display  Size
}

// NewImageSampler validates the settings and returns a sampler for an
// asset of the given size rendered at display size.
func NewImageSampler(source FrameSource, settings Settings, asset, display Size) (*ImageSampler, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &ImageSampler{source: source, settings: settings, asset: asset, display: display}, nil
}

// SampleStrip returns the RGBA pixels of rect, or nil when no frame is
// available or rect lies outside it.
func SampleStrip(img image.Image, rect image.Rectangle) []byte {
	if img == nil || rect.Empty() || !rect.In(img.Bounds()) {
		return nil
	}
	return imaging.Crop(img, rect).Pix
}

// ReadFrame decodes the frame number of the rendered frame. It returns
// false when it cannot verify the frame.
func (s *ImageSampler) ReadFrame() (int, bool) {
	strip, err := s.settings.Strip(s.asset, s.display)
	if err != nil {
		return 0, false
	}
	pixels := SampleStrip(s.source.Frame(), strip.Rect)
	return Decode(pixels, strip.Digits, strip.CellWidth)
}
