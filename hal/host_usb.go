//go:build !tinygo

package hal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"

	"elektra/internal/proto"
)

// BridgeConfig configures the websocket stand-in for the USB HID function.
type BridgeConfig struct {
	// Listen is the TCP address of the bridge. Empty disables it.
	Listen string
	// MDNS advertises the bridge as _elektra._tcp on the local network.
	MDNS bool
	// FramePeriod is the start-of-frame interval, 1 ms on full-speed USB.
	FramePeriod time.Duration
}

const (
	MDNSService = "_elektra._tcp"
	mdnsDomain  = "local."
	// GetStatus is the text message that requests a status report.
	GetStatus = "get"
)

// hostUSB carries HID reports over websocket connections at GET /hid. Binary
// messages are output reports from the host; the text message "get" returns
// the status report as a binary message. The function counts as enabled from
// the first connection on, the way the device stays configured after
// enumeration.
type hostUSB struct {
	cfg BridgeConfig
	log Logger

	enabled atomic.Bool

	mu    sync.RWMutex
	in    func([]byte)
	out   func([]byte) int
	frame func()

	// rx serialises report delivery; one endpoint delivers one report at a
	// time regardless of how many hosts are connected.
	rx sync.Mutex

	upgrader websocket.Upgrader
	srv      *http.Server
	ln       net.Listener
	mdns     *zeroconf.Server
	stop     chan struct{}
	wg       sync.WaitGroup
	conns    atomic.Int64
}

func newHostUSB(cfg BridgeConfig, log Logger) *hostUSB {
	if cfg.FramePeriod <= 0 {
		cfg.FramePeriod = time.Millisecond
	}
	return &hostUSB{
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  proto.MaxReportLen,
			WriteBufferSize: proto.MaxReportLen,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		stop: make(chan struct{}),
	}
}

func (u *hostUSB) Enabled() bool { return u.enabled.Load() }

func (u *hostUSB) SetFrameHandler(fn func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.frame = fn
}

func (u *hostUSB) SetReportHandlers(in func([]byte), out func([]byte) int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.in = in
	u.out = out
}

// Router returns the bridge HTTP routes.
func (u *hostUSB) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/hid", u.serveHID).Methods(http.MethodGet)
	r.HandleFunc("/status", u.serveStatus).Methods(http.MethodGet)
	return r
}

// Start listens on cfg.Listen and serves until Close.
func (u *hostUSB) Start() error {
	if u.cfg.Listen == "" {
		return nil
	}
	ln, err := net.Listen("tcp", u.cfg.Listen)
	if err != nil {
		return fmt.Errorf("usb bridge: listen %s: %w", u.cfg.Listen, err)
	}
	u.ln = ln
	u.srv = &http.Server{Handler: u.Router(), ReadHeaderTimeout: 5 * time.Second}

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		if err := u.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			u.logf("usb bridge: serve: %v", err)
		}
	}()
	u.logf("usb bridge: listening on %s", ln.Addr())

	if u.cfg.MDNS {
		if err := u.advertise(ln.Addr()); err != nil {
			u.logf("usb bridge: mdns: %v", err)
		}
	}
	return nil
}

func (u *hostUSB) advertise(addr net.Addr) error {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}
	srv, err := zeroconf.Register("elektra-"+uuid.NewString()[:8], MDNSService, mdnsDomain, port, []string{"proto=hid-ws", "path=/hid"}, nil)
	if err != nil {
		return err
	}
	u.mdns = srv
	u.logf("usb bridge: mdns %s registered on port %d", MDNSService, port)
	return nil
}

// Addr returns the bound listen address, or "" if the bridge is disabled.
func (u *hostUSB) Addr() string {
	if u.ln == nil {
		return ""
	}
	return u.ln.Addr().String()
}

func (u *hostUSB) Close() error {
	select {
	case <-u.stop:
		return nil
	default:
	}
	close(u.stop)
	if u.mdns != nil {
		u.mdns.Shutdown()
	}
	var err error
	if u.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err = u.srv.Shutdown(ctx)
	}
	u.wg.Wait()
	return err
}

// attach marks the function enabled. The first attach starts the
// start-of-frame generator, which then runs until Close.
func (u *hostUSB) attach() {
	if !u.enabled.CompareAndSwap(false, true) {
		return
	}
	go u.runFrames()
}

func (u *hostUSB) runFrames() {
	t := time.NewTicker(u.cfg.FramePeriod)
	defer t.Stop()
	for {
		select {
		case <-u.stop:
			return
		case <-t.C:
			u.mu.RLock()
			fn := u.frame
			u.mu.RUnlock()
			if fn != nil {
				fn()
			}
		}
	}
}

func (u *hostUSB) serveHID(w http.ResponseWriter, r *http.Request) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		u.logf("usb bridge: upgrade: %v", err)
		return
	}
	id := uuid.New()
	u.conns.Add(1)
	u.attach()
	u.logf("usb bridge: host %s connected from %s", id, r.RemoteAddr)

	done := make(chan struct{})
	defer func() {
		close(done)
		_ = conn.Close()
		u.conns.Add(-1)
		u.logf("usb bridge: host %s disconnected", id)
	}()

	go func() {
		select {
		case <-u.stop:
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			if len(msg) > proto.MaxReportLen {
				u.logf("usb bridge: host %s: dropped %d-byte report", id, len(msg))
				continue
			}
			u.deliver(msg)
		case websocket.TextMessage:
			if string(msg) != GetStatus {
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, u.status()); err != nil {
				return
			}
		}
	}
}

// deliver hands one output report to the device. Reports that arrive before
// the device registered its handlers are lost, as on real hardware.
func (u *hostUSB) deliver(report []byte) {
	u.mu.RLock()
	in := u.in
	u.mu.RUnlock()
	if in != nil {
		u.rx.Lock()
		in(report)
		u.rx.Unlock()
	}
}

// status returns the current input report, empty until a handler exists.
func (u *hostUSB) status() []byte {
	u.mu.RLock()
	out := u.out
	u.mu.RUnlock()
	if out == nil {
		return []byte{}
	}
	buf := make([]byte, proto.MaxReportLen)
	return buf[:out(buf)]
}

type statusJSON struct {
	Enabled            bool   `json:"enabled"`
	Ready              bool   `json:"ready"`
	Hosts              int64  `json:"hosts"`
	AnimationActive    bool   `json:"animationActive"`
	StorageWriteActive bool   `json:"storageWriteActive"`
	Mode               string `json:"mode"`
}

func (u *hostUSB) serveStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusJSON{Enabled: u.Enabled(), Hosts: u.conns.Load()}
	if st, err := proto.ParseStatus(u.status()); err == nil {
		resp.Ready = true
		resp.AnimationActive = st.AnimationActive
		resp.StorageWriteActive = st.StorageWriteActive
		resp.Mode = st.Mode.String()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (u *hostUSB) logf(format string, args ...any) {
	if u.log != nil {
		u.log.WriteLineString(fmt.Sprintf(format, args...))
	}
}
