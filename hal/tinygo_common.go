//go:build tinygo && baremetal

package hal

import (
	"machine"
	"time"
)

type serialLogger struct {
	port machine.Serialer
}

func (l *serialLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.port.WriteByte(s[i])
	}
	l.port.WriteByte('\r')
	l.port.WriteByte('\n')
}

func (l *serialLogger) WriteLineBytes(b []byte) {
	for i := 0; i < len(b); i++ {
		l.port.WriteByte(b[i])
	}
	l.port.WriteByte('\r')
	l.port.WriteByte('\n')
}

// machinePin adapts a machine.Pin to GPIOPin.
type machinePin struct {
	name string
	pin  machine.Pin
	mode GPIOMode
}

func newMachinePin(name string, pin machine.Pin) *machinePin {
	return &machinePin{name: name, pin: pin}
}

func (p *machinePin) Name() string   { return p.name }
func (p *machinePin) Caps() GPIOCaps { return GPIOCapInput | GPIOCapOutput | GPIOCapPullUp | GPIOCapPullDown }

func (p *machinePin) Configure(mode GPIOMode, pull GPIOPull) error {
	cfg := machine.PinConfig{Mode: machine.PinOutput}
	if mode == GPIOModeInput {
		switch pull {
		case GPIOPullUp:
			cfg.Mode = machine.PinInputPullup
		case GPIOPullDown:
			cfg.Mode = machine.PinInputPulldown
		default:
			cfg.Mode = machine.PinInput
		}
	}
	p.pin.Configure(cfg)
	p.mode = mode
	return nil
}

func (p *machinePin) Read() (bool, error) { return p.pin.Get(), nil }

func (p *machinePin) Write(level bool) error {
	p.pin.Set(level)
	return nil
}

// machineWatchdog drives machine.Watchdog.
type machineWatchdog struct{}

func (machineWatchdog) Configure(timeout time.Duration) error {
	ms := timeout.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	return machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: uint32(ms)})
}

func (machineWatchdog) Start() error { return machine.Watchdog.Start() }
func (machineWatchdog) Feed()        { machine.Watchdog.Update() }
