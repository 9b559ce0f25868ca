//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"elektra/internal/strip"
)

// HostConfig selects the host stand-ins for the device peripherals.
type HostConfig struct {
	// FlashPath is the flash image file; see FlashPath for the fallbacks.
	FlashPath string
	Bridge    BridgeConfig
	// Order and Layout let the strip probe decode what the driver sends.
	Order  strip.ColorOrder
	Layout strip.Layout
	// Strip replaces the virtual strip pins, e.g. with PeriphStripPins.
	Strip *StripPins
	// ResetReason is reported to the controller at boot.
	ResetReason ResetReason
	// Log defaults to stdout.
	Log io.Writer
}

// Host is the desktop HAL. Strip pins are virtual unless cfg.Strip is set, in
// which case the probe sees nothing.
type Host struct {
	logger *hostLogger
	pins   StripPins
	probe  *StripProbe
	flash  *hostFlash
	timer  *tickerTimer
	usb    *hostUSB
	wdt    *hostWatchdog
	reason ResetReason
}

func NewHost(cfg HostConfig) (*Host, error) {
	if cfg.Log == nil {
		cfg.Log = os.Stdout
	}
	if cfg.Layout.Capacity() == 0 {
		cfg.Layout = strip.DefaultLayout
	}
	logger := &hostLogger{w: cfg.Log}

	enc, err := strip.NewEncoder(cfg.Order)
	if err != nil {
		return nil, err
	}
	probe := newStripProbe(enc, cfg.Layout)

	var pins StripPins
	if cfg.Strip != nil {
		pins = *cfg.Strip
	} else {
		pins = StripPins{
			Power: newVirtualPin("PWR", GPIOCapOutput, probe.power),
			Clock: newVirtualPin("CLK", GPIOCapOutput, nil),
		}
		for i := range pins.Data {
			seg := i
			pins.Data[i] = newVirtualPin(fmt.Sprintf("DATA%d", i), GPIOCapOutput, func(level bool) { probe.bit(seg, level) })
		}
	}

	flash, err := newHostFlash(FlashPath(cfg.FlashPath))
	if err != nil {
		return nil, err
	}

	h := &Host{
		logger: logger,
		pins:   pins,
		probe:  probe,
		flash:  flash,
		timer:  newTickerTimer(),
		usb:    newHostUSB(cfg.Bridge, logger),
		wdt:    newHostWatchdog(),
		reason: cfg.ResetReason,
	}
	if err := h.usb.Start(); err != nil {
		_ = flash.Close()
		return nil, err
	}
	return h, nil
}

func (h *Host) Logger() Logger           { return h.logger }
func (h *Host) Strip() StripPins         { return h.pins }
func (h *Host) Flash() Flash             { return h.flash }
func (h *Host) Timer() Timer             { return h.timer }
func (h *Host) USB() USB                 { return h.usb }
func (h *Host) Watchdog() Watchdog       { return h.wdt }
func (h *Host) ResetReason() ResetReason { return h.reason }

// Probe returns the decoder attached to the virtual strip pins.
func (h *Host) Probe() *StripProbe { return h.probe }

// BridgeAddr returns the address the USB bridge listens on.
func (h *Host) BridgeAddr() string { return h.usb.Addr() }

// WatchdogExpired is closed when the software watchdog bites.
func (h *Host) WatchdogExpired() <-chan struct{} { return h.wdt.Expired() }

// Close releases the host resources, emulating power loss.
func (h *Host) Close() error {
	h.wdt.stop()
	_ = h.timer.Stop()
	err := h.usb.Close()
	if ferr := h.flash.Close(); err == nil {
		err = ferr
	}
	return err
}

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
