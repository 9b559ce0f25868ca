package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"elektra/hal"
	"elektra/internal/buildinfo"
	"elektra/internal/command"
	"elektra/internal/engine"
	"elektra/internal/engine/playback"
	"elektra/internal/pixel"
	"elektra/internal/session"
	"elektra/internal/store"
	"elektra/internal/strip"
	"elektra/internal/tick"
)

// System is the wired controller.
type System struct {
	h   hal.HAL
	cfg Config
	log hal.Logger

	Session    *session.Session
	Writer     *store.Writer
	Ticks      *tick.OneWay
	Buffer     *pixel.Buffer
	Driver     *strip.Driver
	Classifier *command.Classifier
	Engine     engine.Engine
	Runloop    *Runloop
}

// Option adjusts a System before it is wired.
type Option func(*System)

// WithEngine replaces the playback engine.
func WithEngine(e engine.Engine) Option {
	return func(s *System) { s.Engine = e }
}

// New wires the controller over h. Nothing touches the hardware except the
// pin configuration; call Boot to start it.
func New(h hal.HAL, cfg Config, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &System{h: h, cfg: cfg, log: h.Logger()}

	pins := h.Strip()
	if err := pins.Configure(); err != nil {
		return nil, errors.Wrap(err, "configure strip pins")
	}

	flash, err := store.NewFlashRegion(h.Flash(), cfg.FlashBase, cfg.FlashSize)
	if err != nil {
		return nil, err
	}
	s.Session = session.New()
	s.Writer = store.NewWriter(store.NewRAM(cfg.RAMSize), flash, s.Session)
	s.Ticks = tick.NewOneWay(h.Timer(), cfg.TimerIntervalMs)

	enc, err := strip.NewEncoder(cfg.Order)
	if err != nil {
		return nil, err
	}
	enc.SetBrightnessLimit(cfg.BrightnessLimit)
	var data [strip.SegmentCount]strip.Line
	for i, p := range pins.Data {
		if p != nil {
			data[i] = p
		}
	}
	if pins.Clock == nil {
		return nil, errors.New("strip: no clock pin")
	}
	s.Driver, err = strip.NewDriver(pins.Clock, data, cfg.Layout, enc)
	if err != nil {
		return nil, err
	}

	s.Buffer = pixel.NewBuffer(cfg.Layout.Capacity())
	s.Classifier = command.New(s.Session, s.Writer, s.Driver, s.log)
	s.Engine = playback.New(s.Writer, s.Ticks, s.Buffer, s.log)
	for _, o := range opts {
		o(s)
	}

	idle := yieldIdle
	if cfg.IdlePause > 0 {
		idle = func() { time.Sleep(cfg.IdlePause) }
		s.Ticks.SetYield(idle)
	}
	s.Runloop = &Runloop{
		sess:           s.Session,
		ticks:          s.Ticks,
		eng:            s.Engine,
		buf:            s.Buffer,
		out:            s.Driver,
		wdt:            h.Watchdog(),
		usb:            h.USB(),
		cmd:            s.Classifier,
		log:            s.log,
		idle:           idle,
		ErrorIndicator: pixel.RGB(0x20, 0, 0, 1),
		fill:           s.Driver.Fill,
	}
	return s, nil
}

// Boot brings the hardware up: watchdog, strip power, pacing timer and the
// boot indicator. Unless the last reset came from the watchdog, the program
// in persistent storage is started.
func (s *System) Boot() error {
	bootStep(s.h, "watchdog")
	wdt := s.h.Watchdog()
	if err := wdt.Configure(s.cfg.WatchdogTimeout); err != nil {
		return errors.Wrap(err, "boot: watchdog")
	}
	if err := wdt.Start(); err != nil {
		return errors.Wrap(err, "boot: watchdog")
	}

	bootStep(s.h, "strip power")
	if p := s.h.Strip().Power; p != nil {
		if err := p.Write(true); err != nil {
			return errors.Wrap(err, "boot: strip power")
		}
	}

	bootStep(s.h, "timer")
	t := s.h.Timer()
	t.SetHandler(s.Ticks.TimerFired)
	s.Ticks.SetInterval(s.cfg.TimerIntervalMs)
	if err := t.Start(); err != nil {
		return errors.Wrap(err, "boot: timer")
	}
	if usb := s.h.USB(); usb != nil {
		usb.SetFrameHandler(s.Ticks.FrameSync)
	}

	bootStep(s.h, "indicator")
	if err := s.Driver.Fill(s.cfg.BootIndicator); err != nil {
		s.logf("boot: indicator: %v", err)
	}

	reason := s.h.ResetReason()
	if reason == hal.ResetWatchdog {
		s.logf("elektra %s: watchdog reset, staying stopped", buildinfo.Short())
	} else {
		s.Session.SetTarget(store.Persistent)
		s.Session.SetState(session.Initializing)
		s.logf("elektra %s: %s reset, starting stored program", buildinfo.Short(), reason)
	}
	bootStep(s.h, "running")
	return nil
}

// Run boots and runs the main loop until ctx is done.
func (s *System) Run(ctx context.Context) error {
	if err := s.Boot(); err != nil {
		return err
	}
	return s.Runloop.Run(ctx)
}

func (s *System) logf(format string, args ...any) {
	if s.log != nil {
		s.log.WriteLineString(fmt.Sprintf(format, args...))
	}
}

// Run wires and runs the controller forever (TinyGo entrypoint).
func Run(h hal.HAL, cfg Config) {
	s, err := New(h, cfg)
	if err != nil {
		if l := h.Logger(); l != nil {
			l.WriteLineString("elektra: " + err.Error())
		}
		select {}
	}
	_ = s.Run(context.Background())
}
