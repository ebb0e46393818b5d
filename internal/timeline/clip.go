package timeline

// Clip places media on the timeline between Start and End, timeline
// seconds. Media time is Remap applied to the time elapsed since Start.
type Clip struct {
	Start float64
	End   float64
	Remap *Remap
}

// Contains reports whether the clip is visible at timeline time t.
func (c Clip) Contains(t float64) bool {
	return t >= c.Start && t < c.End
}

// MediaTime returns the media time and speed at timeline time t.
func (c Clip) MediaTime(t float64) (media, speed float64) {
	media, speed = c.Remap.MediaTime(t - c.Start)
	return max(media, 0), speed
}
