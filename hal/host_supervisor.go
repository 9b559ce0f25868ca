//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"os"
	"time"
)

// App runs the controller on h until ctx is done.
type App func(ctx context.Context, h HAL) error

// stopGrace bounds how long a restart waits for a wedged controller.
const stopGrace = time.Second

// supervisor owns one controller instance at a time and restarts it on a
// watchdog bite, the way the MCU resets.
type supervisor struct {
	app    App
	cfg    HostConfig
	host   *Host
	cancel context.CancelFunc
	errc   chan error
	exited bool // errc already drained
	resets int
}

func newSupervisor(app App, cfg HostConfig) *supervisor {
	if cfg.ResetReason == ResetUnknown {
		cfg.ResetReason = ResetPowerOn
	}
	return &supervisor{app: app, cfg: cfg}
}

func (s *supervisor) start(ctx context.Context, reason ResetReason) error {
	cfg := s.cfg
	cfg.ResetReason = reason
	h, err := NewHost(cfg)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	errc := make(chan error, 1)
	go func() { errc <- s.app(runCtx, h) }()
	s.host, s.cancel, s.errc, s.exited = h, cancel, errc, false
	return nil
}

// stop cancels the running instance and releases its host resources.
func (s *supervisor) stop() {
	if s.host == nil {
		return
	}
	s.cancel()
	if !s.exited {
		select {
		case <-s.errc:
		case <-time.After(stopGrace):
			s.host.logger.WriteLineString("supervisor: controller did not stop, abandoning it")
		}
	}
	if err := s.host.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	s.host = nil
}

// restart replaces the instance after a watchdog expiry.
func (s *supervisor) restart(ctx context.Context) error {
	s.host.logger.WriteLineString("supervisor: watchdog expired, resetting")
	s.stop()
	s.resets++
	return s.start(ctx, ResetWatchdog)
}
