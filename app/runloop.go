package app

import (
	"context"
	"fmt"
	"runtime"

	"elektra/hal"
	"elektra/internal/engine"
	"elektra/internal/pixel"
	"elektra/internal/session"
	"elektra/internal/tick"
)

// Renderer transmits a pixel buffer to the strips.
type Renderer interface {
	Render(buf *pixel.Buffer) (int, error)
}

// ReportHandler is the command side of the HID function.
type ReportHandler interface {
	HandleReport(report []byte)
	Status(dst []byte) int
}

// Runloop is the main loop: it keeps the watchdog fed, brings up the host
// link and steps the animation engine at the pace of the tick arbiter.
type Runloop struct {
	sess   *session.Session
	ticks  tick.Arbiter
	eng    engine.Engine
	buf    *pixel.Buffer
	out    Renderer
	wdt    hal.Watchdog
	usb    hal.USB
	cmd    ReportHandler
	log    hal.Logger
	idle   func()
	linkUp bool

	// ErrorIndicator is shown when the engine panics.
	ErrorIndicator pixel.Pixel
	fill           func(pixel.Pixel) error
}

func (r *Runloop) logf(format string, args ...any) {
	if r.log != nil {
		r.log.WriteLineString(fmt.Sprintf(format, args...))
	}
}

// Step runs one iteration. It only returns an error when ctx is done while
// waiting for a tick.
func (r *Runloop) Step(ctx context.Context) error {
	r.wdt.Feed()
	r.activateLink()
	defer r.sess.SetAnimationActive(false)

	switch r.sess.State() {
	case session.Initializing:
		r.sess.SetAnimationActive(true)
		t := r.sess.Target()
		ok := r.safely("init", func() bool { return r.eng.Init(t) })
		if ok {
			if !r.sess.CompareAndSwapState(session.Initializing, session.Running) {
				r.logf("runloop: %s program ready but state changed to %s", t, r.sess.State())
			}
			return nil
		}
		r.logf("runloop: %s program init failed", t)
		r.sess.CompareAndSwapState(session.Initializing, session.Stopped)

	case session.Running:
		r.sess.SetAnimationActive(true)
		if err := r.ticks.Wait(ctx); err != nil {
			return err
		}
		t := r.sess.Target()
		if !r.safely("step", func() bool { return r.eng.Step(t) }) {
			r.logf("runloop: %s program stopped", t)
			r.sess.CompareAndSwapState(session.Running, session.Stopped)
			return nil
		}
		if r.buf.Dirty() {
			if _, err := r.out.Render(r.buf); err != nil {
				r.logf("runloop: render: %v", err)
			}
		}

	default:
		r.idle()
	}
	return nil
}

// Run steps until ctx is done.
func (r *Runloop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Step(ctx); err != nil {
			return err
		}
	}
}

// activateLink hands pacing to the host frame sync and registers the report
// handlers the first time the USB function is seen enabled.
func (r *Runloop) activateLink() {
	if r.linkUp || r.usb == nil || !r.usb.Enabled() {
		return
	}
	r.linkUp = true
	if _, err := r.ticks.UseFrameSync(); err != nil {
		r.logf("runloop: %v", err)
	}
	r.usb.SetReportHandlers(r.cmd.HandleReport, r.cmd.Status)
	r.logf("runloop: host link up, pacing from %s", r.ticks.Source())
}

// LinkUp reports whether the host link has been activated.
func (r *Runloop) LinkUp() bool { return r.linkUp }

func yieldIdle() { runtime.Gosched() }
