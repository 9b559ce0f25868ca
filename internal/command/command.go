// Package command classifies inbound HID reports and drives the session state
// machine from the report callback context.
package command

import (
	"fmt"

	"elektra/hal"
	"elektra/internal/pixel"
	"elektra/internal/proto"
	"elektra/internal/session"
	"elektra/internal/store"
)

// Result is the outcome of handling one report.
type Result uint8

const (
	Break Result = iota
	DiscardBusy
	DiscardMalformed
	DiscardUnknownOpcode
	Stopped
	Resumed
	Started
	StoreBegun
	Stored
	StoreFailed
)

func (r Result) String() string {
	switch r {
	case Break:
		return "break"
	case DiscardBusy:
		return "discard-busy"
	case DiscardMalformed:
		return "discard-malformed"
	case DiscardUnknownOpcode:
		return "discard-unknown-opcode"
	case Stopped:
		return "stopped"
	case Resumed:
		return "resumed"
	case Started:
		return "started"
	case StoreBegun:
		return "store-begun"
	case Stored:
		return "stored"
	case StoreFailed:
		return "store-failed"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// Discarded reports whether the report was dropped without effect.
func (r Result) Discarded() bool {
	return r == DiscardBusy || r == DiscardMalformed || r == DiscardUnknownOpcode
}

// Writer is the program storage sink.
type Writer interface {
	Begin(t store.Target) error
	Write(p []byte) (int, error)
}

// Indicator shows a uniform colour on every strip.
type Indicator interface {
	Fill(p pixel.Pixel) error
}

// StoreIndicator is shown when a store session begins.
var StoreIndicator = pixel.RGB(5, 5, 5, 1)

type Classifier struct {
	sess *session.Session
	w    Writer
	ind  Indicator
	log  hal.Logger
}

// New returns a classifier. ind and log may be nil.
func New(sess *session.Session, w Writer, ind Indicator, log hal.Logger) *Classifier {
	return &Classifier{sess: sess, w: w, ind: ind, log: log}
}

// Handle processes one inbound report. Discards are reported through the
// Result; the error is only set for StoreFailed and for a store session that
// could not begin.
func (c *Classifier) Handle(report []byte) (Result, error) {
	if proto.IsBreak(report) {
		c.sess.Reset()
		return Break, nil
	}
	if c.sess.Busy() {
		return DiscardBusy, nil
	}
	if c.sess.Mode() == proto.ModeStore {
		return c.store(report)
	}
	ctl, ok := proto.ParseControl(report[0])
	if !ok {
		return DiscardMalformed, nil
	}
	if !ctl.Op.Valid() {
		return DiscardUnknownOpcode, nil
	}
	t := store.TargetFor(ctl.Persistent)
	if ctl.Op != proto.OpBeginStore {
		c.sess.SetTarget(t)
	}

	switch ctl.Op {
	case proto.OpStop:
		c.sess.SetState(session.Stopped)
		return Stopped, nil
	case proto.OpResume:
		c.sess.SetState(session.Running)
		return Resumed, nil
	case proto.OpStart:
		c.sess.SetState(session.Initializing)
		return Started, nil
	case proto.OpBeginStore:
		return c.beginStore(t)
	default:
		return DiscardUnknownOpcode, nil
	}
}

func (c *Classifier) beginStore(t store.Target) (Result, error) {
	c.sess.SetState(session.Stopped)
	if err := c.w.Begin(t); err != nil {
		c.logf("command: begin store: %v", err)
		return StoreFailed, err
	}
	c.sess.SetTarget(t)
	c.sess.SetMode(proto.ModeStore)
	if c.ind != nil {
		if err := c.ind.Fill(StoreIndicator); err != nil {
			c.logf("command: store indicator: %v", err)
		}
	}
	return StoreBegun, nil
}

func (c *Classifier) store(payload []byte) (Result, error) {
	if _, err := c.w.Write(payload); err != nil {
		c.logf("command: store %d bytes: %v", len(payload), err)
		return StoreFailed, err
	}
	return Stored, nil
}

// HandleReport is the inbound report callback registered with the USB
// transport.
func (c *Classifier) HandleReport(report []byte) {
	_, _ = c.Handle(report)
}

// Status writes the 3-byte status report into dst and returns its length.
func (c *Classifier) Status(dst []byte) int {
	return c.sess.Status().Put(dst)
}

func (c *Classifier) logf(format string, args ...any) {
	if c.log == nil {
		return
	}
	c.log.WriteLineString(fmt.Sprintf(format, args...))
}
