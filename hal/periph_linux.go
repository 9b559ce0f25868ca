//go:build linux && !tinygo

package hal

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// StripPinNames names the Linux GPIO lines wired to the strip, as known to
// gpioreg (e.g. "GPIO17"). An empty Power means the strip is always powered.
type StripPinNames struct {
	Power string
	Clock string
	Data  [3]string
}

// PeriphStripPins resolves real GPIO lines for the strip driver.
func PeriphStripPins(names StripPinNames) (*StripPins, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph: host init: %w", err)
	}
	var pins StripPins
	var err error
	if names.Power != "" {
		if pins.Power, err = periphPin(names.Power); err != nil {
			return nil, err
		}
	}
	if pins.Clock, err = periphPin(names.Clock); err != nil {
		return nil, err
	}
	for i, n := range names.Data {
		if n == "" {
			continue
		}
		if pins.Data[i], err = periphPin(n); err != nil {
			return nil, err
		}
	}
	return &pins, nil
}

func periphPin(name string) (GPIOPin, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("periph: no gpio named %q", name)
	}
	return &periphGPIO{p: p}, nil
}

type periphGPIO struct {
	p    gpio.PinIO
	mode GPIOMode
}

func (g *periphGPIO) Name() string { return g.p.Name() }
func (g *periphGPIO) Caps() GPIOCaps {
	return GPIOCapInput | GPIOCapOutput | GPIOCapPullUp | GPIOCapPullDown
}

func (g *periphGPIO) Configure(mode GPIOMode, pull GPIOPull) error {
	g.mode = mode
	switch mode {
	case GPIOModeOutput:
		return g.p.Out(gpio.Low)
	case GPIOModeInput:
		pl := gpio.Float
		switch pull {
		case GPIOPullUp:
			pl = gpio.PullUp
		case GPIOPullDown:
			pl = gpio.PullDown
		}
		return g.p.In(pl, gpio.NoEdge)
	default:
		return fmt.Errorf("gpio: pin %s: invalid mode", g.p.Name())
	}
}

func (g *periphGPIO) Read() (bool, error) { return bool(g.p.Read()), nil }

func (g *periphGPIO) Write(level bool) error {
	if g.mode != GPIOModeOutput {
		return fmt.Errorf("gpio: pin %s: not in output mode", g.p.Name())
	}
	return g.p.Out(gpio.Level(level))
}
