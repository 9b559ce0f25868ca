package app

import (
	"time"

	"github.com/pkg/errors"

	"elektra/internal/pixel"
	"elektra/internal/strip"
)

// Config holds the controller parameters. Zero values are not usable; start
// from DefaultConfig.
type Config struct {
	Order  strip.ColorOrder
	Layout strip.Layout
	// BrightnessLimit caps the per-pixel brightness; MaxBrightness disables it.
	BrightnessLimit uint8

	TimerIntervalMs uint16
	WatchdogTimeout time.Duration

	RAMSize   int
	FlashBase int64
	FlashSize int64

	BootIndicator pixel.Pixel

	// IdlePause is how long the runloop and the pacing wait yield per poll.
	// Zero yields the processor without sleeping.
	IdlePause time.Duration
}

const (
	DefaultTimerIntervalMs = 10
	DefaultWatchdogTimeout = 500 * time.Millisecond
	DefaultRAMSize         = 8 * 1024
	DefaultFlashBase       = 0x20000
	DefaultFlashSize       = 64 * 1024
)

func DefaultConfig() Config {
	return Config{
		Order:           strip.OrderRBG,
		Layout:          strip.DefaultLayout,
		BrightnessLimit: pixel.MaxBrightness,
		TimerIntervalMs: DefaultTimerIntervalMs,
		WatchdogTimeout: DefaultWatchdogTimeout,
		RAMSize:         DefaultRAMSize,
		FlashBase:       DefaultFlashBase,
		FlashSize:       DefaultFlashSize,
		BootIndicator:   pixel.RGB(1, 1, 1, 1),
	}
}

func (c Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return errors.Wrap(err, "config: layout")
	}
	if c.BrightnessLimit > pixel.MaxBrightness {
		return errors.Errorf("config: brightness limit %d > %d", c.BrightnessLimit, pixel.MaxBrightness)
	}
	if c.TimerIntervalMs == 0 {
		return errors.New("config: zero timer interval")
	}
	if c.WatchdogTimeout <= 0 {
		return errors.Errorf("config: watchdog timeout %v", c.WatchdogTimeout)
	}
	if c.RAMSize <= 0 {
		return errors.Errorf("config: ram size %d", c.RAMSize)
	}
	if c.FlashBase < 0 || c.FlashSize <= 0 {
		return errors.Errorf("config: flash region %#x+%#x", c.FlashBase, c.FlashSize)
	}
	if c.IdlePause < 0 {
		return errors.Errorf("config: idle pause %v", c.IdlePause)
	}
	return nil
}
