//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"elektra/app"
	"elektra/hal"
	"elektra/internal/strip"
)

func main() {
	cfg, err := baseConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var (
		headless hal.HeadlessConfig
		host     hal.HostConfig
		hz       int
		bright   uint
		pins     hal.StripPinNames
		watchdog bool
	)
	order := cfg.Order.String()
	flag.BoolVar(&headless.Enabled, "headless", false, "Run without a window.")
	flag.DurationVar(&headless.Duration, "duration", 0, "Stop after this long in headless mode (0 = run forever).")
	flag.IntVar(&headless.MaxResets, "max-resets", 0, "Give up after N watchdog resets in headless mode (0 = unlimited).")
	flag.IntVar(&hz, "hz", 1000/app.DefaultTimerIntervalMs, "Pacing timer rate.")
	flag.StringVar(&host.Bridge.Listen, "listen", "127.0.0.1:7750", "HID bridge address (empty disables the bridge).")
	flag.BoolVar(&host.Bridge.MDNS, "mdns", false, "Advertise the HID bridge over mDNS.")
	flag.StringVar(&host.FlashPath, "flash", "", "Flash image path (default $"+hal.FlashPathEnv+" or elektra.flash).")
	flag.StringVar(&order, "order", order, "Strip colour order (RGB, RBG, GBR, BGR).")
	flag.UintVar(&bright, "brightness", uint(cfg.BrightnessLimit), "Brightness limit (0-31).")
	flag.BoolVar(&watchdog, "watchdog-reset", false, "Boot as if the last reset came from the watchdog.")
	flag.StringVar(&pins.Power, "gpio-power", "", "Drive a real strip: power enable GPIO name.")
	flag.StringVar(&pins.Clock, "gpio-clock", "", "Strip clock GPIO name.")
	flag.StringVar(&pins.Data[0], "gpio-data0", "", "Inner segment data GPIO name.")
	flag.StringVar(&pins.Data[1], "gpio-data1", "", "Outer segment data GPIO name.")
	flag.StringVar(&pins.Data[2], "gpio-data2", "", "Edge segment data GPIO name.")
	flag.Parse()

	if cfg.Order, err = strip.ParseColorOrder(order); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if hz <= 0 || hz > 1000 {
		fmt.Fprintln(os.Stderr, "hz must be in 1..1000")
		os.Exit(2)
	}
	cfg.TimerIntervalMs = uint16(1000 / hz)
	cfg.BrightnessLimit = uint8(min(bright, 255))
	cfg.IdlePause = 200 * time.Microsecond
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	host.Order = cfg.Order
	host.Layout = cfg.Layout
	host.ResetReason = hal.ResetPowerOn
	if watchdog {
		host.ResetReason = hal.ResetWatchdog
	}
	if pins.Clock != "" {
		sp, err := hal.PeriphStripPins(pins)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		host.Strip = sp
	}

	controller := func(ctx context.Context, h hal.HAL) error {
		s, err := app.New(h, cfg)
		if err != nil {
			return err
		}
		return s.Run(ctx)
	}

	if headless.Enabled {
		headless.Host = host
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := hal.RunHeadless(ctx, controller, headless); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow(controller, host); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
