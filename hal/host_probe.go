//go:build !tinygo

package hal

import (
	"sync"

	"elektra/internal/pixel"
	"elektra/internal/strip"
)

// StripProbe decodes the bit-serial traffic on the virtual strip pins back
// into pixels, one shift register per data line. It feeds the window preview
// and the host tests.
//
// A full-white pixel at maximum brightness is indistinguishable from a stop
// frame on the wire and ends the segment early.
type StripProbe struct {
	mu      sync.Mutex
	enc     *strip.Encoder
	layout  strip.Layout
	powered bool
	lines   [strip.SegmentCount]probeLine
	latest  [strip.SegmentCount][]pixel.Pixel
	frames  uint64
}

type probeLine struct {
	shift  uint32
	bits   int
	open   bool
	pixels []pixel.Pixel
}

func newStripProbe(enc *strip.Encoder, layout strip.Layout) *StripProbe {
	return &StripProbe{enc: enc, layout: layout}
}

func (p *StripProbe) power(level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.powered = level
}

func (p *StripProbe) bit(seg int, level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l := &p.lines[seg]
	l.shift <<= 1
	if level {
		l.shift |= 1
	}
	l.bits++
	if l.bits < strip.FrameBits {
		return
	}
	frame := l.shift
	l.shift, l.bits = 0, 0

	switch {
	case frame == strip.StartFrame:
		l.open = true
		l.pixels = l.pixels[:0]
	case !l.open:
		// Out of sync; wait for the next start frame.
	case frame == strip.StopFrame || len(l.pixels) == p.layout[seg].Count:
		l.open = false
		p.latest[seg] = append(p.latest[seg][:0], l.pixels...)
		p.frames++
	case strip.IsDataFrame(frame):
		l.pixels = append(l.pixels, p.enc.Decode(frame))
	}
}

// Segment returns a copy of the last complete frame received on segment i.
func (p *StripProbe) Segment(i int) []pixel.Pixel {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= strip.SegmentCount {
		return nil
	}
	return append([]pixel.Pixel(nil), p.latest[i]...)
}

// Frames returns the number of complete segment frames decoded.
func (p *StripProbe) Frames() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// Powered reports the level of the strip power line.
func (p *StripProbe) Powered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.powered
}

func (p *StripProbe) Layout() strip.Layout { return p.layout }
