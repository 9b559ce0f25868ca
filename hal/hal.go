package hal

import (
	"errors"
	"time"

	"tinygo.org/x/tinyfs"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// StripPins are the LED strip lines: a power enable, the shared clock and one
// data line per segment.
type StripPins struct {
	Power GPIOPin
	Clock GPIOPin
	Data  [3]GPIOPin
}

// Configure puts every present pin into output mode.
func (s StripPins) Configure() error {
	pins := []GPIOPin{s.Power, s.Clock, s.Data[0], s.Data[1], s.Data[2]}
	for _, p := range pins {
		if p == nil {
			continue
		}
		if err := p.Configure(GPIOModeOutput, GPIOPullNone); err != nil {
			return err
		}
	}
	return nil
}

// Flash provides raw access to non-volatile memory.
//
// Writes only clear bits; a region must be erased (set to 0xFF) in whole
// erase blocks before it is rewritten.
type Flash = tinyfs.BlockDevice

// Timer is a periodic hardware timer. The handler runs in interrupt (or
// goroutine) context once per interval while the timer is started.
type Timer interface {
	SetHandler(fn func())
	SetInterval(ms uint16)
	Start() error
	Stop() error
}

// USB is the HID function towards the host.
type USB interface {
	// Enabled reports whether the host has configured the device.
	Enabled() bool
	// SetFrameHandler registers the 1 ms start-of-frame callback.
	SetFrameHandler(fn func())
	// SetReportHandlers registers the report callbacks. in receives reports
	// sent by the host; out fills the report returned to the host and
	// returns its length.
	SetReportHandlers(in func(report []byte), out func(dst []byte) int)
}

// Watchdog resets the device unless fed within the configured timeout.
type Watchdog interface {
	Configure(timeout time.Duration) error
	Start() error
	Feed()
}

// ResetReason is the cause of the last device reset.
type ResetReason uint8

const (
	ResetUnknown ResetReason = iota
	ResetPowerOn
	ResetExternal
	ResetWatchdog
	ResetSoftware
)

func (r ResetReason) String() string {
	switch r {
	case ResetPowerOn:
		return "power-on"
	case ResetExternal:
		return "external"
	case ResetWatchdog:
		return "watchdog"
	case ResetSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// HAL provides the only contact point between the controller and the outside
// world.
type HAL interface {
	Logger() Logger
	Strip() StripPins
	Flash() Flash
	Timer() Timer
	USB() USB
	Watchdog() Watchdog
	ResetReason() ResetReason
}
