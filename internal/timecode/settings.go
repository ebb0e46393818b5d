// Package timecode reads a binary frame counter burned into video frames
// and uses it to place a media element on an exact frame.
package timecode

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// Placement is the corner of the frame holding the timecode.
type Placement string

const (
	PlacementTopLeft     Placement = "top-left"
	PlacementTopRight    Placement = "top-right"
	PlacementBottomLeft  Placement = "bottom-left"
	PlacementBottomRight Placement = "bottom-right"
)

// ScaleMode says whether the timecode resizes with the asset.
type ScaleMode string

const (
	// ScaleFixed keeps digit cells at their configured pixel size.
	ScaleFixed ScaleMode = "fixed"
	// ScaleRelative scales digit cells by display width / asset width.
	ScaleRelative ScaleMode = "relative"
)

var (
	ErrUnsupportedPlacement = errors.New("unsupported timecode placement")
	ErrUnsupportedScaleMode = errors.New("unsupported timecode scale mode")
	ErrInvalidSettings      = errors.New("invalid timecode settings")
)

// Settings describes the burned-in timecode. Settings are immutable for
// the lifetime of a media setup.
type Settings struct {
	Digits      int
	DigitWidth  float64
	DigitHeight float64
	Placement   Placement
	PaddingTop  float64
	ScaleMode   ScaleMode
}

// Size is a width and height in pixels.
type Size struct {
	Width  float64
	Height float64
}

// Strip is the one-pixel-tall row crossing the middle of every digit cell.
type Strip struct {
	Rect      image.Rectangle
	CellWidth int
	Digits    int
}

// Validate checks the settings for programmer errors.
func (s Settings) Validate() error {
	if s.Digits <= 0 || s.DigitWidth <= 0 || s.DigitHeight <= 0 {
		return fmt.Errorf("%w: digits=%d width=%v height=%v", ErrInvalidSettings, s.Digits, s.DigitWidth, s.DigitHeight)
	}
	switch s.Placement {
	case PlacementTopLeft, PlacementTopRight, PlacementBottomLeft, PlacementBottomRight:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedPlacement, s.Placement)
	}
	switch s.ScaleMode {
	case ScaleFixed, ScaleRelative, "":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScaleMode, s.ScaleMode)
	}
	return nil
}

// Strip locates the sampling row for an asset rendered at display size.
func (s Settings) Strip(asset, display Size) (Strip, error) {
	if err := s.Validate(); err != nil {
		return Strip{}, err
	}

	scale := 1.0
	if s.ScaleMode == ScaleRelative && asset.Width > 0 {
		scale = display.Width / asset.Width
	}
	cellWidth := max(int(math.Round(s.DigitWidth*scale)), 1)
	cellHeight := s.DigitHeight * scale
	padding := s.PaddingTop * scale
	width := cellWidth * s.Digits

	var x, y float64
	switch s.Placement {
	case PlacementTopLeft:
		x, y = 0, padding+cellHeight/2
	case PlacementTopRight:
		x, y = display.Width-float64(width), padding+cellHeight/2
	case PlacementBottomLeft:
		x, y = 0, display.Height-cellHeight/2
	case PlacementBottomRight:
		x, y = display.Width-float64(width), display.Height-cellHeight/2
	}

	x0 := int(math.Round(x))
	y0 := int(math.Floor(y))
	return Strip{
		Rect:      image.Rect(x0, y0, x0+width, y0+1),
		CellWidth: cellWidth,
		Digits:    s.Digits,
	}, nil
}
