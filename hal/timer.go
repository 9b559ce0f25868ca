package hal

import (
	"sync"
	"time"
)

// tickerTimer is a goroutine-backed periodic timer. The handler runs on the
// timer goroutine, standing in for the timer interrupt.
type tickerTimer struct {
	mu       sync.Mutex
	handler  func()
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	fired    uint64
}

func newTickerTimer() *tickerTimer {
	return &tickerTimer{interval: 10 * time.Millisecond}
}

func (t *tickerTimer) SetHandler(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = fn
}

// SetInterval takes effect on the next Start; a running timer is restarted.
func (t *tickerTimer) SetInterval(ms uint16) {
	if ms == 0 {
		ms = 1
	}
	t.mu.Lock()
	t.interval = time.Duration(ms) * time.Millisecond
	running := t.stop != nil
	t.mu.Unlock()

	if running {
		_ = t.Stop()
		_ = t.Start()
	}
}

func (t *tickerTimer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return nil
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.interval, t.stop, t.done)
	return nil
}

func (t *tickerTimer) Stop() error {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

func (t *tickerTimer) run(d time.Duration, stop, done chan struct{}) {
	defer close(done)
	tk := time.NewTicker(d)
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tk.C:
			t.mu.Lock()
			h := t.handler
			t.fired++
			t.mu.Unlock()
			if h != nil {
				h()
			}
		}
	}
}

// Running reports whether the timer goroutine is active.
func (t *tickerTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Fired returns the number of handler invocations so far.
func (t *tickerTimer) Fired() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
