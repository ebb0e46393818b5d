package timeline

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidRemap is returned for keyframes that do not describe a
// forward-playing remap.
var ErrInvalidRemap = errors.New("invalid time remap")

// Keyframe pins a clip-local time to a media time, both in seconds.
type Keyframe struct {
	At    float64
	Media float64
}

// Remap maps clip-local time to media time by linear interpolation
// between keyframes. The zero value maps time to itself.
type Remap struct {
	keys []Keyframe
}

// NewRemap validates and sorts keys. Keyframe times must be distinct and
// media times must not decrease, so the media never plays backwards.
func NewRemap(keys ...Keyframe) (*Remap, error) {
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, func(a, b Keyframe) int {
		switch {
		case a.At < b.At:
			return -1
		case a.At > b.At:
			return 1
		default:
			return 0
		}
	})
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.At == prev.At {
			return nil, fmt.Errorf("%w: two keyframes at %.3fs", ErrInvalidRemap, cur.At)
		}
		if cur.Media < prev.Media {
			return nil, fmt.Errorf("%w: media time decreases at %.3fs", ErrInvalidRemap, cur.At)
		}
	}
	return &Remap{keys: sorted}, nil
}

// Keyframes returns a copy of the keyframes in time order.
func (r *Remap) Keyframes() []Keyframe {
	if r == nil {
		return nil
	}
	return slices.Clone(r.keys)
}

// MediaTime returns the media time shown at clip-local time t and the
// media speed there. Before the first and after the last keyframe the
// nearest segment is extrapolated; a single keyframe is a plain offset.
func (r *Remap) MediaTime(t float64) (media, speed float64) {
	if r == nil || len(r.keys) == 0 {
		return t, 1
	}
	if len(r.keys) == 1 {
		k := r.keys[0]
		return k.Media + (t - k.At), 1
	}

	i, _ := slices.BinarySearchFunc(r.keys, t, func(k Keyframe, t float64) int {
		switch {
		case k.At < t:
			return -1
		case k.At > t:
			return 1
		default:
			return 0
		}
	})
	// segment [i-1, i] contains t
	i = min(max(i, 1), len(r.keys)-1)
	a, b := r.keys[i-1], r.keys[i]
	speed = (b.Media - a.Media) / (b.At - a.At)
	return a.Media + (t-a.At)*speed, speed
}
