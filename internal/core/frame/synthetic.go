package frame

import (
	"math/rand"
	"time"
)

// Synthetic frame generators. Used by the demo feed and by tests that need
// deterministic static and high-motion sequences without a camera.

// Uniform returns a frame filled with a single intensity.
func Uniform(seq uint64, w, h int, value uint8) *Frame {
	gray := make([]uint8, w*h)
	for i := range gray {
		gray[i] = value
	}
	return &Frame{Seq: seq, Width: w, Height: h, Gray: gray, Timestamp: time.Now()}
}

// Noise returns a frame of pseudo-random intensity driven by the given source.
// Passing a fixed-seed source makes the sequence reproducible.
func Noise(seq uint64, w, h int, rng *rand.Rand) *Frame {
	gray := make([]uint8, w*h)
	for i := range gray {
		gray[i] = uint8(rng.Intn(256))
	}
	return &Frame{Seq: seq, Width: w, Height: h, Gray: gray, Timestamp: time.Now()}
}

// MovingBlock returns a frame with a bright square at the given offset on a
// dark background. Advancing the offset per frame simulates object motion.
func MovingBlock(seq uint64, w, h, blockSize, offsetX, offsetY int) *Frame {
	gray := make([]uint8, w*h)
	for i := range gray {
		gray[i] = 16
	}
	for y := offsetY; y < offsetY+blockSize && y < h; y++ {
		if y < 0 {
			continue
		}
		for x := offsetX; x < offsetX+blockSize && x < w; x++ {
			if x < 0 {
				continue
			}
			gray[y*w+x] = 240
		}
	}
	return &Frame{Seq: seq, Width: w, Height: h, Gray: gray, Timestamp: time.Now()}
}
