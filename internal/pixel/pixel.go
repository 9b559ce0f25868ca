// Package pixel holds the logical pixel array shared by the animation engine
// and the strip driver.
package pixel

import "sync/atomic"

// MaxBrightness is the largest value of the 5-bit global brightness field.
const MaxBrightness = 31

// Pixel is one LED: 8-bit colour channels plus 5-bit brightness.
type Pixel struct {
	R, G, B    uint8
	Brightness uint8
}

// RGB returns a pixel with the given colour at brightness b (masked to 5 bits).
func RGB(r, g, b, brightness uint8) Pixel {
	return Pixel{R: r, G: g, B: b, Brightness: brightness & MaxBrightness}
}

// Buffer is a fixed-length pixel array with a dirty flag.
//
// The engine marks the buffer dirty when it changes the contents; the strip
// driver clears the flag when it consumes the buffer. The flag may be read
// from other goroutines.
type Buffer struct {
	pixels []Pixel
	dirty  atomic.Bool
}

// NewBuffer returns a buffer of n pixels, all off.
func NewBuffer(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	return &Buffer{pixels: make([]Pixel, n)}
}

func (b *Buffer) Len() int { return len(b.pixels) }

// At returns pixel i, or the zero pixel if i is out of range.
func (b *Buffer) At(i int) Pixel {
	if i < 0 || i >= len(b.pixels) {
		return Pixel{}
	}
	return b.pixels[i]
}

// Set stores p at index i and marks the buffer dirty. Out of range indices are ignored.
func (b *Buffer) Set(i int, p Pixel) {
	if i < 0 || i >= len(b.pixels) {
		return
	}
	p.Brightness &= MaxBrightness
	b.pixels[i] = p
	b.dirty.Store(true)
}

// Fill sets every pixel to p.
func (b *Buffer) Fill(p Pixel) {
	p.Brightness &= MaxBrightness
	for i := range b.pixels {
		b.pixels[i] = p
	}
	b.dirty.Store(true)
}

// Pixels exposes the backing slice. Callers must not retain it across steps.
func (b *Buffer) Pixels() []Pixel { return b.pixels }

func (b *Buffer) Dirty() bool { return b.dirty.Load() }

func (b *Buffer) MarkDirty() { b.dirty.Store(true) }

// ClearDirty clears the dirty flag and reports whether it was set.
func (b *Buffer) ClearDirty() bool { return b.dirty.Swap(false) }
