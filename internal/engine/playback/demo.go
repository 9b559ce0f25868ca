package playback

import (
	"github.com/pkg/errors"

	"elektra/internal/pixel"
)

// Demo names accepted by DemoProgram.
var Demos = []string{"rainbow", "chase"}

// DemoProgram builds one of the built-in demo programs for n pixels.
func DemoProgram(name string, n int, brightness uint8) (Program, error) {
	if n <= 0 {
		return Program{}, errors.Errorf("demo %q: %d pixels", name, n)
	}
	switch name {
	case "rainbow":
		return rainbow(n, brightness), nil
	case "chase":
		return chase(n, brightness), nil
	default:
		return Program{}, errors.Errorf("unknown demo %q", name)
	}
}

func rainbow(n int, brightness uint8) Program {
	const steps = 48
	p := Program{IntervalMs: 40, Frames: make([][]pixel.Pixel, steps)}
	for f := range p.Frames {
		frame := make([]pixel.Pixel, n)
		for i := range frame {
			r, g, b := wheel(uint8((i*256/n + f*256/steps) & 0xFF))
			frame[i] = pixel.RGB(r, g, b, brightness)
		}
		p.Frames[f] = frame
	}
	return p
}

func chase(n int, brightness uint8) Program {
	p := Program{IntervalMs: 60, Frames: make([][]pixel.Pixel, n)}
	for f := range p.Frames {
		frame := make([]pixel.Pixel, n)
		frame[f] = pixel.RGB(0xFF, 0x40, 0x00, brightness)
		frame[(f+n-1)%n] = pixel.RGB(0x40, 0x10, 0x00, brightness)
		p.Frames[f] = frame
	}
	return p
}

// wheel maps a position on a 256-step colour wheel to RGB.
func wheel(pos uint8) (r, g, b uint8) {
	switch {
	case pos < 85:
		return 255 - pos*3, pos * 3, 0
	case pos < 170:
		pos -= 85
		return 0, 255 - pos*3, pos * 3
	default:
		pos -= 170
		return pos * 3, 0, 255 - pos*3
	}
}
