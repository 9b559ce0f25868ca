//go:build !tinygo

package hal

import (
	"fmt"
	"sync"
	"time"
)

// hostWatchdog emulates the MCU watchdog: once started it must be fed within
// the timeout, otherwise Expired is closed. The runner treats that as a
// device reset.
type hostWatchdog struct {
	mu      sync.Mutex
	timeout time.Duration
	timer   *time.Timer
	expired chan struct{}
	once    sync.Once
	feeds   uint64
}

func newHostWatchdog() *hostWatchdog {
	return &hostWatchdog{expired: make(chan struct{})}
}

func (w *hostWatchdog) Configure(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("watchdog: invalid timeout %v", timeout)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeout = timeout
	return nil
}

func (w *hostWatchdog) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timeout == 0 {
		return fmt.Errorf("watchdog: not configured")
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.timeout, w.expire)
	}
	return nil
}

func (w *hostWatchdog) Feed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.feeds++
	if w.timer != nil {
		w.timer.Reset(w.timeout)
	}
}

func (w *hostWatchdog) expire() {
	w.once.Do(func() { close(w.expired) })
}

// Expired is closed when the watchdog times out.
func (w *hostWatchdog) Expired() <-chan struct{} { return w.expired }

// Feeds returns the number of Feed calls.
func (w *hostWatchdog) Feeds() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feeds
}

func (w *hostWatchdog) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
