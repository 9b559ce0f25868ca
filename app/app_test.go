package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"elektra/hal"
	"elektra/internal/engine"
	"elektra/internal/engine/playback"
	"elektra/internal/pixel"
	"elektra/internal/proto"
	"elektra/internal/session"
	"elektra/internal/store"
	"elektra/internal/tick"
)

type fakePin struct {
	name   string
	mode   hal.GPIOMode
	level  bool
	writes int
}

func (p *fakePin) Name() string       { return p.name }
func (p *fakePin) Caps() hal.GPIOCaps { return hal.GPIOCapOutput }
func (p *fakePin) Configure(mode hal.GPIOMode, pull hal.GPIOPull) error {
	p.mode = mode
	return nil
}
func (p *fakePin) Read() (bool, error) { return p.level, nil }
func (p *fakePin) Write(level bool) error {
	if p.mode != hal.GPIOModeOutput {
		return errors.New("not output")
	}
	p.level = level
	p.writes++
	return nil
}

type memFlash struct{ data []byte }

func newMemFlash(size int) *memFlash {
	f := &memFlash{data: make([]byte, size)}
	for i := range f.data {
		f.data[i] = 0xFF
	}
	return f
}

func (f *memFlash) ReadAt(p []byte, off int64) (int, error)  { return copy(p, f.data[off:]), nil }
func (f *memFlash) WriteAt(p []byte, off int64) (int, error) { return copy(f.data[off:], p), nil }
func (f *memFlash) Size() int64                              { return int64(len(f.data)) }
func (f *memFlash) WriteBlockSize() int64                    { return 4 }
func (f *memFlash) EraseBlockSize() int64                    { return 4096 }
func (f *memFlash) EraseBlocks(start, n int64) error {
	for i := start * 4096; i < (start+n)*4096; i++ {
		f.data[i] = 0xFF
	}
	return nil
}

type fakeTimer struct {
	handler  func()
	interval uint16
	running  bool
	stopErr  error
}

func (t *fakeTimer) SetHandler(fn func())  { t.handler = fn }
func (t *fakeTimer) SetInterval(ms uint16) { t.interval = ms }
func (t *fakeTimer) Start() error          { t.running = true; return nil }
func (t *fakeTimer) Stop() error {
	if t.stopErr != nil {
		return t.stopErr
	}
	t.running = false
	return nil
}

type fakeUSB struct {
	enabled bool
	frame   func()
	in      func([]byte)
	out     func([]byte) int
	regs    int
}

func (u *fakeUSB) Enabled() bool             { return u.enabled }
func (u *fakeUSB) SetFrameHandler(fn func()) { u.frame = fn }
func (u *fakeUSB) SetReportHandlers(in func([]byte), out func([]byte) int) {
	u.in, u.out = in, out
	u.regs++
}

type fakeWatchdog struct {
	timeout time.Duration
	started bool
	feeds   int
}

func (w *fakeWatchdog) Configure(d time.Duration) error { w.timeout = d; return nil }
func (w *fakeWatchdog) Start() error                    { w.started = true; return nil }
func (w *fakeWatchdog) Feed()                           { w.feeds++ }

type lines []string

func (l *lines) WriteLineString(s string) { *l = append(*l, s) }
func (l *lines) WriteLineBytes(b []byte)  { *l = append(*l, string(b)) }

func (l *lines) contains(sub string) bool {
	for _, s := range *l {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type fakeHAL struct {
	log    lines
	power  *fakePin
	clock  *fakePin
	data   [3]*fakePin
	flash  *memFlash
	timer  *fakeTimer
	usb    *fakeUSB
	wdt    *fakeWatchdog
	reason hal.ResetReason
}

func newFakeHAL() *fakeHAL {
	h := &fakeHAL{
		power:  &fakePin{name: "PWR"},
		clock:  &fakePin{name: "CLK"},
		flash:  newMemFlash(256 * 1024),
		timer:  &fakeTimer{},
		usb:    &fakeUSB{},
		wdt:    &fakeWatchdog{},
		reason: hal.ResetPowerOn,
	}
	for i := range h.data {
		h.data[i] = &fakePin{name: "DATA"}
	}
	return h
}

func (h *fakeHAL) Logger() hal.Logger { return &h.log }
func (h *fakeHAL) Strip() hal.StripPins {
	return hal.StripPins{Power: h.power, Clock: h.clock, Data: [3]hal.GPIOPin{h.data[0], h.data[1], h.data[2]}}
}
func (h *fakeHAL) Flash() hal.Flash             { return h.flash }
func (h *fakeHAL) Timer() hal.Timer             { return h.timer }
func (h *fakeHAL) USB() hal.USB                 { return h.usb }
func (h *fakeHAL) Watchdog() hal.Watchdog       { return h.wdt }
func (h *fakeHAL) ResetReason() hal.ResetReason { return h.reason }

func (h *fakeHAL) dataWrites() int {
	n := 0
	for _, p := range h.data {
		n += p.writes
	}
	return n
}

func newTestSystem(t *testing.T, h *fakeHAL, opts ...Option) *System {
	t.Helper()
	s, err := New(h, DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	bad := []func(*Config){
		func(c *Config) { c.TimerIntervalMs = 0 },
		func(c *Config) { c.BrightnessLimit = 32 },
		func(c *Config) { c.RAMSize = 0 },
		func(c *Config) { c.FlashSize = 0 },
		func(c *Config) { c.WatchdogTimeout = 0 },
		func(c *Config) { c.Layout[0].Count, c.Layout[1].Count, c.Layout[2].Count = 0, 0, 0 },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: Validate() = nil", i)
		}
	}
}

func TestBootStartsStoredProgram(t *testing.T) {
	h := newFakeHAL()
	s := newTestSystem(t, h)
	if err := s.Boot(); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if !h.wdt.started || h.wdt.timeout != DefaultWatchdogTimeout {
		t.Fatalf("watchdog started=%v timeout=%v", h.wdt.started, h.wdt.timeout)
	}
	if !h.power.level {
		t.Fatal("strip power not enabled")
	}
	if !h.timer.running || h.timer.interval != DefaultTimerIntervalMs || h.timer.handler == nil {
		t.Fatalf("timer running=%v interval=%d", h.timer.running, h.timer.interval)
	}
	if h.dataWrites() == 0 {
		t.Fatal("boot indicator not sent")
	}
	if s.Session.State() != session.Initializing || s.Session.Target() != store.Persistent {
		t.Fatalf("session = %v/%v, want initializing/persistent", s.Session.State(), s.Session.Target())
	}
}

func TestBootAfterWatchdogResetStaysStopped(t *testing.T) {
	h := newFakeHAL()
	h.reason = hal.ResetWatchdog
	s := newTestSystem(t, h)
	if err := s.Boot(); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if s.Session.State() != session.Stopped {
		t.Fatalf("state = %v, want stopped", s.Session.State())
	}
}

func TestFailedInitNeverEncodes(t *testing.T) {
	h := newFakeHAL()
	inits := 0
	s := newTestSystem(t, h, WithEngine(engine.Func{
		InitFunc: func(store.Target) bool { inits++; return false },
		StepFunc: func(store.Target) bool { t.Fatal("Step called"); return false },
	}))

	s.Classifier.HandleReport([]byte{byte(proto.OpStart)})
	for i := 0; i < 3; i++ {
		s.Ticks.TimerFired()
		if err := s.Runloop.Step(context.Background()); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	if inits != 1 {
		t.Fatalf("Init called %d times, want 1", inits)
	}
	if s.Session.State() != session.Stopped {
		t.Fatalf("state = %v, want stopped", s.Session.State())
	}
	if n := h.dataWrites(); n != 0 {
		t.Fatalf("%d data line writes, want none", n)
	}
	if s.Session.AnimationActive() {
		t.Fatal("animation flag left set")
	}
}

func TestWatchdogFedEveryIteration(t *testing.T) {
	h := newFakeHAL()
	s := newTestSystem(t, h, WithEngine(engine.Func{
		InitFunc: func(store.Target) bool { return true },
		StepFunc: func(store.Target) bool { return true },
	}))
	ctx := context.Background()

	steps := 0
	for _, st := range []session.AnimationState{session.Stopped, session.Initializing, session.Running} {
		s.Session.SetState(st)
		s.Ticks.TimerFired()
		if err := s.Runloop.Step(ctx); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		steps++
		if h.wdt.feeds != steps {
			t.Fatalf("feeds = %d after %d steps", h.wdt.feeds, steps)
		}
	}
}

func TestBreakDuringInitWins(t *testing.T) {
	h := newFakeHAL()
	var s *System
	s = newTestSystem(t, h, WithEngine(engine.Func{
		InitFunc: func(store.Target) bool {
			s.Classifier.HandleReport(proto.BreakPacket(4))
			return true
		},
	}))
	s.Session.SetState(session.Initializing)
	if err := s.Runloop.Step(context.Background()); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if s.Session.State() != session.Stopped {
		t.Fatalf("state = %v, want stopped", s.Session.State())
	}
}

func TestBusyDuringIteration(t *testing.T) {
	h := newFakeHAL()
	var s *System
	var got proto.Status
	s = newTestSystem(t, h, WithEngine(engine.Func{
		InitFunc: func(store.Target) bool {
			s.Classifier.HandleReport([]byte{byte(proto.OpStop)})
			var b [proto.StatusLen]byte
			s.Classifier.Status(b[:])
			got, _ = proto.ParseStatus(b[:])
			return true
		},
	}))
	s.Session.SetState(session.Initializing)
	_ = s.Runloop.Step(context.Background())
	if !got.AnimationActive {
		t.Fatal("status during init did not report animation active")
	}
	if s.Session.State() != session.Running {
		t.Fatalf("state = %v, want running (stop was discarded)", s.Session.State())
	}
}

func TestRunningRendersOnlyWhenDirty(t *testing.T) {
	h := newFakeHAL()
	var s *System
	dirty := true
	s = newTestSystem(t, h, WithEngine(engine.Func{
		InitFunc: func(store.Target) bool { return true },
		StepFunc: func(store.Target) bool {
			if dirty {
				s.Buffer.Set(0, pixel.RGB(1, 2, 3, 4))
			}
			return true
		},
	}))
	s.Session.SetState(session.Running)
	s.Ticks.TimerFired()
	_ = s.Runloop.Step(context.Background())
	first := h.dataWrites()
	if first == 0 {
		t.Fatal("dirty buffer not rendered")
	}
	if s.Buffer.Dirty() {
		t.Fatal("render did not clear dirty flag")
	}

	dirty = false
	s.Ticks.TimerFired()
	_ = s.Runloop.Step(context.Background())
	if h.dataWrites() != first {
		t.Fatal("clean buffer rendered")
	}
}

func TestRunningWaitsForTick(t *testing.T) {
	h := newFakeHAL()
	s := newTestSystem(t, h, WithEngine(engine.Func{
		StepFunc: func(store.Target) bool { return true },
	}))
	s.Session.SetState(session.Running)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Runloop.Step(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Step() without tick = %v, want deadline exceeded", err)
	}
}

func TestStepFailureStops(t *testing.T) {
	h := newFakeHAL()
	s := newTestSystem(t, h, WithEngine(engine.Func{
		StepFunc: func(store.Target) bool { return false },
	}))
	s.Session.SetState(session.Running)
	s.Ticks.TimerFired()
	_ = s.Runloop.Step(context.Background())
	if s.Session.State() != session.Stopped {
		t.Fatalf("state = %v, want stopped", s.Session.State())
	}
}

func TestEnginePanicStops(t *testing.T) {
	h := newFakeHAL()
	s := newTestSystem(t, h, WithEngine(engine.Func{
		InitFunc: func(store.Target) bool { panic("bad opcode") },
	}))
	s.Session.SetState(session.Initializing)
	_ = s.Runloop.Step(context.Background())
	if s.Session.State() != session.Stopped {
		t.Fatalf("state = %v, want stopped", s.Session.State())
	}
	if !h.log.contains("bad opcode") {
		t.Fatal("panic not logged")
	}
	if h.dataWrites() == 0 {
		t.Fatal("error indicator not shown")
	}
}

func TestHostLinkActivation(t *testing.T) {
	h := newFakeHAL()
	s := newTestSystem(t, h)
	if err := s.Boot(); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	s.Session.SetState(session.Stopped)
	ctx := context.Background()

	_ = s.Runloop.Step(ctx)
	if s.Runloop.LinkUp() || h.usb.in != nil {
		t.Fatal("link activated while USB disabled")
	}

	h.usb.enabled = true
	_ = s.Runloop.Step(ctx)
	_ = s.Runloop.Step(ctx)
	if h.usb.regs != 1 {
		t.Fatalf("handlers registered %d times, want 1", h.usb.regs)
	}
	if s.Ticks.Source() != tick.SourceFrameSync || h.timer.running {
		t.Fatalf("source = %v timer running = %v", s.Ticks.Source(), h.timer.running)
	}

	// Frame-sync events now pace the loop; timer callbacks are ignored.
	h.timer.handler()
	if s.Ticks.Pending() != 0 {
		t.Fatal("timer tick counted after switch")
	}
	for i := 0; i <= DefaultTimerIntervalMs; i++ {
		h.usb.frame()
	}
	if s.Ticks.Pending() != 1 {
		t.Fatalf("pending = %d after %d frames, want 1", s.Ticks.Pending(), DefaultTimerIntervalMs+1)
	}

	var st [proto.StatusLen]byte
	if n := h.usb.out(st[:]); n != proto.StatusLen {
		t.Fatalf("status handler returned %d", n)
	}
}

func TestHostLinkTimerStopFailureLogged(t *testing.T) {
	h := newFakeHAL()
	h.timer.stopErr = errors.New("alarm in use")
	s := newTestSystem(t, h)
	if err := s.Boot(); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	s.Session.SetState(session.Stopped)

	h.usb.enabled = true
	_ = s.Runloop.Step(context.Background())
	if !s.Runloop.LinkUp() || s.Ticks.Source() != tick.SourceFrameSync {
		t.Fatalf("link up = %v source = %v", s.Runloop.LinkUp(), s.Ticks.Source())
	}
	if !h.log.contains("stop timer: alarm in use") {
		t.Fatalf("log = %q", h.log)
	}
}

func TestStoreAndPlayPersistentProgram(t *testing.T) {
	h := newFakeHAL()
	s := newTestSystem(t, h)
	if err := s.Boot(); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	h.usb.enabled = true
	ctx := context.Background()
	// Blank flash: the boot-time auto start fails and the link comes up.
	_ = s.Runloop.Step(ctx)
	if s.Session.State() != session.Stopped || h.usb.in == nil {
		t.Fatalf("after first step state=%v link=%v", s.Session.State(), h.usb.in != nil)
	}

	prog := playback.Program{IntervalMs: 20, Frames: [][]pixel.Pixel{
		{pixel.RGB(10, 20, 30, 5)},
		{pixel.RGB(40, 50, 60, 6)},
	}}
	img, err := playback.Encode(prog)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	h.usb.in([]byte{proto.Control{Op: proto.OpBeginStore, Persistent: true}.Byte()})
	for off := 0; off < len(img); off += 6 {
		end := off + 6
		if end > len(img) {
			end = len(img)
		}
		h.usb.in(img[off:end])
	}
	h.usb.in(proto.BreakPacket(proto.MaxReportLen))
	if s.Writer.Cursor() != int64(len(img)) {
		t.Fatalf("cursor = %d, want %d", s.Writer.Cursor(), len(img))
	}
	got := h.flash.data[DefaultFlashBase : DefaultFlashBase+len(img)]
	if string(got) != string(img) {
		t.Fatal("flash contents differ from uploaded program")
	}

	h.usb.in([]byte{proto.Control{Op: proto.OpStart, Persistent: true}.Byte()})
	_ = s.Runloop.Step(ctx)
	if s.Session.State() != session.Running {
		t.Fatalf("state after init = %v, want running", s.Session.State())
	}
	if s.Ticks.Interval() != 20 {
		t.Fatalf("interval = %d, want 20", s.Ticks.Interval())
	}

	for i := 0; i <= 20; i++ {
		h.usb.frame()
	}
	_ = s.Runloop.Step(ctx)
	if s.Buffer.At(0) != pixel.RGB(10, 20, 30, 5) {
		t.Fatalf("pixel 0 = %+v", s.Buffer.At(0))
	}
}
