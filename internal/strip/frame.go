// Package strip encodes pixel buffers into 32-bit serial frames and clocks
// them out on three LED strip data lines that share one clock line.
package strip

import (
	"strings"

	"github.com/pkg/errors"

	"elektra/internal/pixel"
)

const (
	// FrameBits is the number of bits in every start, data and stop frame.
	FrameBits = 32

	StartFrame uint32 = 0x00000000
	StopFrame  uint32 = 0xFFFFFFFF

	// frameMarker occupies the top three bits of every data frame.
	frameMarker     uint32 = 0b111 << 29
	brightnessShift        = 24
)

// ColorOrder selects the byte order of the colour channels in a data frame.
type ColorOrder uint8

const (
	OrderRGB ColorOrder = iota
	OrderBGR
	OrderGBR
	// OrderRBG matches the Adafruit APA102C parts the board shipped with.
	OrderRBG
)

func (o ColorOrder) String() string {
	switch o {
	case OrderRGB:
		return "rgb"
	case OrderBGR:
		return "bgr"
	case OrderGBR:
		return "gbr"
	case OrderRBG:
		return "rbg"
	default:
		return "unknown"
	}
}

// ParseColorOrder parses "rgb", "bgr", "gbr" or "rbg" (case-insensitive).
func ParseColorOrder(s string) (ColorOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rgb":
		return OrderRGB, nil
	case "bgr":
		return OrderBGR, nil
	case "gbr":
		return OrderGBR, nil
	case "rbg", "":
		return OrderRBG, nil
	default:
		return 0, errors.Errorf("strip: unknown colour order %q", s)
	}
}

type packFunc func(p pixel.Pixel) uint32
type unpackFunc func(v uint32) (r, g, b uint8)

func orderFuncs(o ColorOrder) (packFunc, unpackFunc, bool) {
	switch o {
	case OrderRGB:
		return func(p pixel.Pixel) uint32 {
				return uint32(p.R)<<16 | uint32(p.G)<<8 | uint32(p.B)
			}, func(v uint32) (uint8, uint8, uint8) {
				return uint8(v >> 16), uint8(v >> 8), uint8(v)
			}, true
	case OrderBGR:
		return func(p pixel.Pixel) uint32 {
				return uint32(p.B)<<16 | uint32(p.G)<<8 | uint32(p.R)
			}, func(v uint32) (uint8, uint8, uint8) {
				return uint8(v), uint8(v >> 8), uint8(v >> 16)
			}, true
	case OrderGBR:
		return func(p pixel.Pixel) uint32 {
				return uint32(p.G)<<16 | uint32(p.B)<<8 | uint32(p.R)
			}, func(v uint32) (uint8, uint8, uint8) {
				return uint8(v), uint8(v >> 16), uint8(v >> 8)
			}, true
	case OrderRBG:
		return func(p pixel.Pixel) uint32 {
				return uint32(p.R)<<16 | uint32(p.B)<<8 | uint32(p.G)
			}, func(v uint32) (uint8, uint8, uint8) {
				return uint8(v >> 16), uint8(v), uint8(v >> 8)
			}, true
	default:
		return nil, nil, false
	}
}

// Encoder converts pixels to data frames for one fixed colour order.
type Encoder struct {
	order  ColorOrder
	pack   packFunc
	unpack unpackFunc
	limit  uint8
}

// NewEncoder resolves the colour order once; it is not consulted per pixel.
func NewEncoder(order ColorOrder) (*Encoder, error) {
	pack, unpack, ok := orderFuncs(order)
	if !ok {
		return nil, errors.Errorf("strip: invalid colour order %d", order)
	}
	return &Encoder{order: order, pack: pack, unpack: unpack, limit: pixel.MaxBrightness}, nil
}

func (e *Encoder) Order() ColorOrder { return e.order }

// SetBrightnessLimit caps the brightness field of every encoded pixel.
// A limit of 31 (the default) leaves pixels untouched.
func (e *Encoder) SetBrightnessLimit(limit uint8) {
	if limit > pixel.MaxBrightness {
		limit = pixel.MaxBrightness
	}
	e.limit = limit
}

// DataFrame returns the 32-bit data frame for p: marker, brightness, colour.
func (e *Encoder) DataFrame(p pixel.Pixel) uint32 {
	bright := p.Brightness & pixel.MaxBrightness
	if bright > e.limit {
		bright = e.limit
	}
	return frameMarker | uint32(bright)<<brightnessShift | e.pack(p)
}

// Decode is the inverse of DataFrame (ignoring the brightness limit).
func (e *Encoder) Decode(frame uint32) pixel.Pixel {
	r, g, b := e.unpack(frame & 0x00FFFFFF)
	return pixel.Pixel{R: r, G: g, B: b, Brightness: uint8(frame>>brightnessShift) & pixel.MaxBrightness}
}

// IsDataFrame reports whether frame carries the data frame marker.
func IsDataFrame(frame uint32) bool { return frame&frameMarker == frameMarker }
