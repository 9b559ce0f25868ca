// Package tick paces animation stepping from one of two interchangeable tick
// producers: a free-running hardware timer or the host's 1 ms frame-sync
// event.
package tick

import (
	"context"
	"runtime"
	"sync/atomic"
)

// Counter counts elapsed ticks. Producers increment it from callback context;
// the pacing wait consumes it.
type Counter struct {
	n atomic.Uint32
}

func (c *Counter) Inc()         { c.n.Add(1) }
func (c *Counter) Load() uint32 { return c.n.Load() }

// Consume resets the counter to zero and returns the ticks it held.
func (c *Counter) Consume() uint32 { return c.n.Swap(0) }

// Source identifies the active tick producer.
type Source uint8

const (
	SourceTimer Source = iota
	SourceFrameSync
)

func (s Source) String() string {
	switch s {
	case SourceTimer:
		return "timer"
	case SourceFrameSync:
		return "frame-sync"
	default:
		return "unknown"
	}
}

// Timer is the periodic hardware timer backing the timer producer.
type Timer interface {
	SetInterval(ms uint16)
	Start() error
	Stop() error
}

// Arbiter is what the runloop needs from a tick source.
type Arbiter interface {
	// Wait blocks until at least one tick elapsed, then consumes all of them.
	Wait(ctx context.Context) error
	// SetInterval changes the tick period in milliseconds.
	SetInterval(ms uint16)
	// UseFrameSync hands pacing to the frame-sync producer. It reports
	// whether this call performed the switch. The switch holds even when
	// stopping the timer fails; that error is returned.
	UseFrameSync() (bool, error)
	Source() Source
}

// wait spins until c is non-zero or ctx is done, calling yield between
// polls. Ticks that pile up while the caller is busy collapse into a single
// release.
func wait(ctx context.Context, c *Counter, yield func()) error {
	if yield == nil {
		yield = runtime.Gosched
	}
	done := ctx.Done()
	for c.Load() == 0 {
		if done != nil {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
		}
		yield()
	}
	c.Consume()
	return nil
}
