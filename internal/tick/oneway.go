package tick

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
)

var _ Arbiter = (*OneWay)(nil)

// OneWay starts on the timer producer and switches to the frame-sync
// producer the first time the host link comes up. There is no switch back:
// if the host later disconnects, pacing stalls until frame-sync events
// resume.
type OneWay struct {
	ticks    Counter
	timer    Timer
	interval atomic.Uint32
	frameAcc uint32 // frame-sync callback only
	switched atomic.Bool
	yield    func()
}

// NewOneWay returns an arbiter driven by timer until UseFrameSync is called.
// The timer interval is set but the timer is not started.
func NewOneWay(timer Timer, intervalMs uint16) *OneWay {
	a := &OneWay{timer: timer}
	a.SetInterval(intervalMs)
	return a
}

// TimerFired is the timer producer's callback.
func (a *OneWay) TimerFired() {
	if a.switched.Load() {
		return
	}
	a.ticks.Inc()
}

// FrameSync is the 1 ms frame-sync producer's callback.
func (a *OneWay) FrameSync() {
	if !a.switched.Load() {
		return
	}
	a.frameAcc++
	if a.frameAcc > a.interval.Load() {
		a.frameAcc = 0
		a.ticks.Inc()
	}
}

func (a *OneWay) UseFrameSync() (bool, error) {
	if !a.switched.CompareAndSwap(false, true) {
		return false, nil
	}
	if a.timer == nil {
		return true, nil
	}
	if err := a.timer.Stop(); err != nil {
		return true, errors.Wrap(err, "stop timer")
	}
	return true, nil
}

func (a *OneWay) Source() Source {
	if a.switched.Load() {
		return SourceFrameSync
	}
	return SourceTimer
}

// SetInterval updates both producers. An accumulator comparison already in
// flight may still use the old value.
func (a *OneWay) SetInterval(ms uint16) {
	a.interval.Store(uint32(ms))
	if a.timer != nil {
		a.timer.SetInterval(ms)
	}
}

func (a *OneWay) Interval() uint16 { return uint16(a.interval.Load()) }

func (a *OneWay) Wait(ctx context.Context) error { return wait(ctx, &a.ticks, a.yield) }

// SetYield replaces the function Wait calls between polls, runtime.Gosched by
// default. Call it before the runloop starts.
func (a *OneWay) SetYield(fn func()) { a.yield = fn }

// Pending returns the ticks not yet consumed by Wait.
func (a *OneWay) Pending() uint32 { return a.ticks.Load() }
