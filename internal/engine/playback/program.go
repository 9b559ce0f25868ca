// Package playback is a frame-table animation engine. A program is a header
// followed by fixed-size frames that are shown in order and looped.
package playback

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"elektra/internal/pixel"
)

const (
	HeaderLen   = 8
	bytesPerPix = 4
)

var magic = [2]byte{'E', 'L'}

var ErrBadProgram = errors.New("playback: bad program")

// Header describes a stored program.
type Header struct {
	IntervalMs uint16
	Frames     uint16
	Pixels     uint16
}

// FrameLen is the byte size of one frame.
func (h Header) FrameLen() int { return int(h.Pixels) * bytesPerPix }

// Len is the byte size of the whole program image.
func (h Header) Len() int { return HeaderLen + int(h.Frames)*h.FrameLen() }

func (h Header) put(b []byte) {
	b[0], b[1] = magic[0], magic[1]
	binary.LittleEndian.PutUint16(b[2:], h.IntervalMs)
	binary.LittleEndian.PutUint16(b[4:], h.Frames)
	binary.LittleEndian.PutUint16(b[6:], h.Pixels)
}

func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, errors.Wrapf(ErrBadProgram, "header is %d bytes", len(b))
	}
	if b[0] != magic[0] || b[1] != magic[1] {
		return Header{}, errors.Wrapf(ErrBadProgram, "magic %q", b[:2])
	}
	h := Header{
		IntervalMs: binary.LittleEndian.Uint16(b[2:]),
		Frames:     binary.LittleEndian.Uint16(b[4:]),
		Pixels:     binary.LittleEndian.Uint16(b[6:]),
	}
	if h.IntervalMs == 0 || h.Frames == 0 || h.Pixels == 0 {
		return Header{}, errors.Wrapf(ErrBadProgram, "empty program %+v", h)
	}
	return h, nil
}

// Program is a decoded frame table.
type Program struct {
	IntervalMs uint16
	Frames     [][]pixel.Pixel
}

// Encode serialises p. All frames must have the same length.
func Encode(p Program) ([]byte, error) {
	if len(p.Frames) == 0 || len(p.Frames) > 0xFFFF {
		return nil, errors.Errorf("playback: %d frames", len(p.Frames))
	}
	n := len(p.Frames[0])
	if n == 0 || n > 0xFFFF {
		return nil, errors.Errorf("playback: %d pixels per frame", n)
	}
	if p.IntervalMs == 0 {
		return nil, errors.New("playback: zero interval")
	}
	h := Header{IntervalMs: p.IntervalMs, Frames: uint16(len(p.Frames)), Pixels: uint16(n)}
	out := make([]byte, h.Len())
	h.put(out)
	off := HeaderLen
	for i, f := range p.Frames {
		if len(f) != n {
			return nil, errors.Errorf("playback: frame %d has %d pixels, want %d", i, len(f), n)
		}
		for _, px := range f {
			out[off] = px.R
			out[off+1] = px.G
			out[off+2] = px.B
			out[off+3] = px.Brightness & pixel.MaxBrightness
			off += bytesPerPix
		}
	}
	return out, nil
}

func Decode(b []byte) (Program, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return Program{}, err
	}
	if len(b) < h.Len() {
		return Program{}, errors.Wrapf(ErrBadProgram, "image is %d bytes, header needs %d", len(b), h.Len())
	}
	p := Program{IntervalMs: h.IntervalMs, Frames: make([][]pixel.Pixel, h.Frames)}
	off := HeaderLen
	for i := range p.Frames {
		p.Frames[i] = make([]pixel.Pixel, h.Pixels)
		decodeFrame(b[off:off+h.FrameLen()], p.Frames[i])
		off += h.FrameLen()
	}
	return p, nil
}

func decodeFrame(b []byte, dst []pixel.Pixel) {
	for i := range dst {
		o := i * bytesPerPix
		dst[i] = pixel.RGB(b[o], b[o+1], b[o+2], b[o+3])
	}
}
