package timecode

// luminanceThreshold is the per-channel mean below which a cell reads as 0.
const luminanceThreshold = 150

// Decode reads a frame number from a one-pixel-tall RGBA strip holding
// digits cells of digitWidth pixels, most significant bit first. The
// mid-point pixel of each cell is 0 when r+g+b < 450 and 1 otherwise.
// It returns false when the strip holds no pixel data.
func Decode(strip []byte, digits, digitWidth int) (int, bool) {
	if len(strip) == 0 || digits <= 0 || digitWidth <= 0 {
		return 0, false
	}

	value := 0
	for i := range digits {
		x := i*digitWidth + digitWidth/2
		offset := x * 4
		if offset+2 >= len(strip) {
			return 0, false
		}
		sum := int(strip[offset]) + int(strip[offset+1]) + int(strip[offset+2])
		bit := 1
		if sum < luminanceThreshold*3 {
			bit = 0
		}
		value = value<<1 | bit
	}
	return value, true
}

// Encode renders value as an RGBA strip readable by Decode: black cells
// for 0 bits and white cells for 1 bits.
func Encode(value, digits, digitWidth int) []byte {
	strip := make([]byte, digits*digitWidth*4)
	for i := range digits {
		bit := (value >> (digits - 1 - i)) & 1
		var c byte
		if bit == 1 {
			c = 0xff
		}
		for x := i * digitWidth; x < (i+1)*digitWidth; x++ {
			strip[x*4] = c
			strip[x*4+1] = c
			strip[x*4+2] = c
			strip[x*4+3] = 0xff
		}
	}
	return strip
}
