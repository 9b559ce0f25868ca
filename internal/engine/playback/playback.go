package playback

import (
	"fmt"

	"elektra/hal"
	"elektra/internal/pixel"
	"elektra/internal/store"
)

// Source returns the program region of a storage target.
type Source interface {
	Region(t store.Target) store.Region
}

// Pacer receives the program's tick interval.
type Pacer interface {
	SetInterval(ms uint16)
}

// Player implements engine.Engine over a frame-table program.
type Player struct {
	src   Source
	pace  Pacer
	buf   *pixel.Buffer
	log   hal.Logger
	hdr   Header
	frame int
	raw   []byte
	fbuf  []pixel.Pixel
}

// New returns a player. pace and log may be nil.
func New(src Source, pace Pacer, buf *pixel.Buffer, log hal.Logger) *Player {
	return &Player{src: src, pace: pace, buf: buf, log: log}
}

func (p *Player) Init(t store.Target) bool {
	r := p.src.Region(t)
	if r == nil {
		return false
	}
	var hb [HeaderLen]byte
	if _, err := r.ReadAt(hb[:], 0); err != nil {
		p.logf("playback: read %s header: %v", t, err)
		return false
	}
	h, err := ParseHeader(hb[:])
	if err != nil {
		p.logf("playback: %s: %v", t, err)
		return false
	}
	if int64(h.Len()) > r.Size() {
		p.logf("playback: %s program needs %d bytes, region has %d", t, h.Len(), r.Size())
		return false
	}
	p.hdr = h
	p.frame = 0
	if cap(p.raw) < h.FrameLen() {
		p.raw = make([]byte, h.FrameLen())
		p.fbuf = make([]pixel.Pixel, h.Pixels)
	}
	p.raw = p.raw[:h.FrameLen()]
	p.fbuf = p.fbuf[:h.Pixels]
	if p.pace != nil {
		p.pace.SetInterval(h.IntervalMs)
	}
	return true
}

func (p *Player) Step(t store.Target) bool {
	if p.hdr.Frames == 0 {
		return false
	}
	r := p.src.Region(t)
	if r == nil {
		return false
	}
	off := int64(HeaderLen + p.frame*p.hdr.FrameLen())
	if _, err := r.ReadAt(p.raw, off); err != nil {
		p.logf("playback: read frame %d: %v", p.frame, err)
		return false
	}
	decodeFrame(p.raw, p.fbuf)
	for i, px := range p.fbuf {
		p.buf.Set(i, px)
	}
	p.frame = (p.frame + 1) % int(p.hdr.Frames)
	return true
}

// Frame returns the index of the next frame to show.
func (p *Player) Frame() int { return p.frame }

func (p *Player) logf(format string, args ...any) {
	if p.log != nil {
		p.log.WriteLineString(fmt.Sprintf(format, args...))
	}
}
