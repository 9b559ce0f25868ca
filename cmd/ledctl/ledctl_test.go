//go:build !tinygo

package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"elektra/internal/command"
	"elektra/internal/proto"
	"elektra/internal/session"
	"elektra/internal/store"
)

// fakeDevice answers the bridge protocol with a real classifier.
type fakeDevice struct {
	mu       sync.Mutex
	sess     *session.Session
	w        *store.Writer
	cls      *command.Classifier
	notReady int
	results  []command.Result
}

func newFakeDevice() *fakeDevice {
	sess := session.New()
	w := store.NewWriter(store.NewRAM(256), store.NewRAM(256), sess)
	return &fakeDevice{sess: sess, w: w, cls: command.New(sess, w, nil, nil)}
}

func (d *fakeDevice) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		d.mu.Lock()
		var reply []byte
		if kind == websocket.BinaryMessage {
			res, _ := d.cls.Handle(msg)
			d.results = append(d.results, res)
		} else if string(msg) == getStatus {
			reply = []byte{}
			if d.notReady > 0 {
				d.notReady--
			} else {
				buf := make([]byte, proto.MaxReportLen)
				reply = buf[:d.cls.Status(buf)]
			}
		}
		d.mu.Unlock()
		if reply != nil {
			if err := conn.WriteMessage(websocket.BinaryMessage, reply); err != nil {
				return
			}
		}
	}
}

func (d *fakeDevice) resultList() []command.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]command.Result(nil), d.results...)
}

func connect(t *testing.T, d *fakeDevice) (*console, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	c, err := dial(ctx, strings.TrimPrefix(srv.URL, "http://"), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	c.poll = time.Millisecond
	out := &bytes.Buffer{}
	return &console{c: c, out: out}, out
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWaitReadyPollsUntilStatus(t *testing.T) {
	d := newFakeDevice()
	d.notReady = 3
	con, _ := connect(t, d)

	st, err := con.c.waitReady(testCtx(t))
	if err != nil {
		t.Fatalf("waitReady: %v", err)
	}
	if st.Mode != proto.ModeControl || st.AnimationActive || st.StorageWriteActive {
		t.Fatalf("status = %+v", st)
	}
}

func TestStorePersistentProgram(t *testing.T) {
	d := newFakeDevice()
	con, _ := connect(t, d)
	data := []byte("ELprogram bytes that span several reports")

	if err := con.store(testCtx(t), data, true, 8); err != nil {
		t.Fatalf("store: %v", err)
	}
	// The status round trip orders us after the trailing break packet.
	st, err := con.c.status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode != proto.ModeControl {
		t.Fatalf("mode after store = %s", st.Mode)
	}

	got := make([]byte, len(data))
	if _, err := d.w.Region(store.Persistent).ReadAt(got, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("persistent region = %q", got)
	}
	if d.sess.Target() != store.Persistent {
		t.Fatalf("target = %s", d.sess.Target())
	}

	res := d.resultList()
	if res[0] != command.StoreBegun || res[len(res)-1] != command.Break {
		t.Fatalf("results = %v", res)
	}
	for _, r := range res[1 : len(res)-1] {
		if r != command.Stored {
			t.Fatalf("results = %v", res)
		}
	}
}

func TestStoreRefusesBreakChunk(t *testing.T) {
	d := newFakeDevice()
	con, _ := connect(t, d)
	data := []byte{1, 2, 3, 4, 0xFF, 0xFF, 0xFF, 0xFF}

	err := con.store(testCtx(t), data, false, 4)
	if !errors.Is(err, errBreakData) {
		t.Fatalf("store error = %v, want errBreakData", err)
	}
	if _, err := con.c.status(); err != nil {
		t.Fatal(err)
	}
	if len(d.resultList()) != 0 {
		t.Fatalf("reports were sent: %v", d.resultList())
	}
}

func TestStopWhileBusySendsBreak(t *testing.T) {
	d := newFakeDevice()
	d.sess.SetState(session.Running)
	d.sess.SetAnimationActive(true)
	con, _ := connect(t, d)

	if err := con.run(testCtx(t), []string{"stop"}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := con.c.status(); err != nil {
		t.Fatal(err)
	}
	if d.sess.State() != session.Stopped {
		t.Fatalf("state = %s", d.sess.State())
	}
	if res := d.resultList(); len(res) != 1 || res[0] != command.Break {
		t.Fatalf("results = %v", res)
	}
}

func TestControlCommands(t *testing.T) {
	d := newFakeDevice()
	con, _ := connect(t, d)

	for _, tc := range []struct {
		cmd  string
		want session.AnimationState
	}{
		{"start", session.Initializing},
		{"stop", session.Stopped},
		{"resume", session.Running},
	} {
		d.sess.SetAnimationActive(false)
		if err := con.run(testCtx(t), []string{tc.cmd}); err != nil {
			t.Fatalf("%s: %v", tc.cmd, err)
		}
		if _, err := con.c.status(); err != nil {
			t.Fatal(err)
		}
		if got := d.sess.State(); got != tc.want {
			t.Fatalf("after %s: state = %s, want %s", tc.cmd, got, tc.want)
		}
	}
}

func TestControlCommandsSelectTarget(t *testing.T) {
	d := newFakeDevice()
	con, _ := connect(t, d)

	for _, tc := range []struct {
		args []string
		want store.Target
	}{
		{[]string{"start", "-persistent"}, store.Persistent},
		{[]string{"resume"}, store.Volatile},
		{[]string{"resume", "-persistent"}, store.Persistent},
		{[]string{"start"}, store.Volatile},
	} {
		if err := con.run(testCtx(t), tc.args); err != nil {
			t.Fatalf("%v: %v", tc.args, err)
		}
		if _, err := con.c.status(); err != nil {
			t.Fatal(err)
		}
		if got := d.sess.Target(); got != tc.want {
			t.Fatalf("after %v: target = %s, want %s", tc.args, got, tc.want)
		}
	}

	if err := con.run(testCtx(t), []string{"start", "extra"}); !errors.Is(err, errUsage) {
		t.Fatalf("start extra = %v, want usage error", err)
	}
}

func TestReplRunsCommands(t *testing.T) {
	d := newFakeDevice()
	con, out := connect(t, d)

	in := strings.NewReader("status\n\nfrobnicate 'a b'\nquit\nstatus\n")
	if err := con.repl(testCtx(t), in); err != nil {
		t.Fatalf("repl: %v", err)
	}
	s := out.String()
	if strings.Count(s, "animation=false write=false mode=control") != 1 {
		t.Fatalf("output = %q", s)
	}
	if !strings.Contains(s, `unknown command "frobnicate"`) {
		t.Fatalf("output = %q", s)
	}
}
