//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	Host    HostConfig
	// Duration stops the runner after this long; zero runs until ctx is done.
	Duration time.Duration
	// MaxResets gives up after this many watchdog resets; zero is unlimited.
	MaxResets int
}

var ErrTooManyResets = errors.New("too many watchdog resets")

// RunHeadless runs the controller without opening a window.
func RunHeadless(ctx context.Context, app App, cfg HeadlessConfig) error {
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	sup := newSupervisor(app, cfg.Host)
	if err := sup.start(ctx, sup.cfg.ResetReason); err != nil {
		return err
	}
	defer sup.stop()

	for {
		select {
		case <-ctx.Done():
			if cfg.Duration > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return ctx.Err()
		case err := <-sup.errc:
			sup.exited = true
			sup.host.logger.WriteLineString("supervisor: controller exited")
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-sup.host.WatchdogExpired():
			if cfg.MaxResets > 0 && sup.resets >= cfg.MaxResets {
				return ErrTooManyResets
			}
			if err := sup.restart(ctx); err != nil {
				return err
			}
		}
	}
}
