package frame

import "time"

// Frame is a single luminance-plane video frame. Capture and color conversion
// happen upstream; the admission path only needs grayscale intensity.
type Frame struct {
	Seq       uint64
	Width     int
	Height    int
	Gray      []uint8 // row-major, len == Width*Height
	Timestamp time.Time
}

// Valid reports whether the frame carries a plane matching its dimensions.
func (f *Frame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && len(f.Gray) == f.Width*f.Height
}

// At returns the intensity at (x, y). Out-of-range coordinates return 0.
func (f *Frame) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0
	}
	return f.Gray[y*f.Width+x]
}
