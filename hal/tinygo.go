//go:build tinygo && baremetal && atsamd21

package hal

import (
	"device/sam"
	"machine"
	"machine/usb/hid"
	"sync"
	"sync/atomic"
)

type tinyGoHAL struct {
	logger *serialLogger
	pins   StripPins
	timer  *tickerTimer
	usb    *hidFunction
	reason ResetReason
}

// New returns the SAMD21 controller HAL.
//
// Strip: PA17 power enable, PA16 clock, PA15/PA09/PA10 data for the inner,
// outer and edge segments. Logs go to machine.Serial.
func New() HAL {
	h := &tinyGoHAL{
		logger: &serialLogger{port: machine.Serial},
		pins: StripPins{
			Power: newMachinePin("PA17", machine.PA17),
			Clock: newMachinePin("PA16", machine.PA16),
			Data: [3]GPIOPin{
				newMachinePin("PA15", machine.PA15),
				newMachinePin("PA09", machine.PA09),
				newMachinePin("PA10", machine.PA10),
			},
		},
		timer:  newTickerTimer(),
		usb:    newHIDFunction(),
		reason: readResetCause(),
	}
	hid.SetHandler(h.usb)
	return h
}

func (h *tinyGoHAL) Logger() Logger           { return h.logger }
func (h *tinyGoHAL) Strip() StripPins         { return h.pins }
func (h *tinyGoHAL) Flash() Flash             { return machine.Flash }
func (h *tinyGoHAL) Timer() Timer             { return h.timer }
func (h *tinyGoHAL) USB() USB                 { return h.usb }
func (h *tinyGoHAL) Watchdog() Watchdog       { return machineWatchdog{} }
func (h *tinyGoHAL) ResetReason() ResetReason { return h.reason }

func readResetCause() ResetReason {
	cause := sam.PM.RCAUSE.Get()
	switch {
	case cause&sam.PM_RCAUSE_WDT != 0:
		return ResetWatchdog
	case cause&sam.PM_RCAUSE_SYST != 0:
		return ResetSoftware
	case cause&sam.PM_RCAUSE_EXT != 0:
		return ResetExternal
	case cause&sam.PM_RCAUSE_POR != 0:
		return ResetPowerOn
	default:
		return ResetUnknown
	}
}

// hidFunction is the HID interface on the device port. The machine package
// exposes no start-of-frame callback, so once the host has sent its first
// report a 1 ms ticker stands in for it. Every received report is answered
// with a status report on the IN endpoint.
type hidFunction struct {
	mu      sync.Mutex
	in      func([]byte)
	out     func([]byte) int
	enabled atomic.Bool
	frames  *tickerTimer
	status  [64]byte
}

func newHIDFunction() *hidFunction {
	return &hidFunction{frames: newTickerTimer()}
}

func (u *hidFunction) Enabled() bool { return u.enabled.Load() }

func (u *hidFunction) SetFrameHandler(fn func()) {
	u.frames.SetHandler(fn)
	u.frames.SetInterval(1)
}

func (u *hidFunction) SetReportHandlers(in func([]byte), out func([]byte) int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.in, u.out = in, out
}

func (u *hidFunction) TxHandler() bool { return false }

func (u *hidFunction) RxHandler(report []byte) bool {
	if u.enabled.CompareAndSwap(false, true) {
		_ = u.frames.Start()
	}
	u.mu.Lock()
	in, out := u.in, u.out
	u.mu.Unlock()
	if in == nil {
		return true
	}
	in(report)
	if out != nil {
		if n := out(u.status[:]); n > 0 {
			hid.SendUSBPacket(u.status[:n])
		}
	}
	return true
}
