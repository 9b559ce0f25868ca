//go:build !tinygo

package main

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"elektra/internal/proto"
)

// getStatus is the text message that asks the bridge for a status report.
const getStatus = "get"

// client talks to the controller's HID bridge over one websocket.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
	// poll is the pause between status requests while waiting on the device.
	poll time.Duration
}

func bridgeURL(addr string) string {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/hid"}
	return u.String()
}

// dial connects to the bridge at addr, retrying with exponential backoff
// until ctx is done or maxWait has elapsed.
func dial(ctx context.Context, addr string, maxWait time.Duration) (*client, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = maxWait

	var conn *websocket.Conn
	op := func() error {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, bridgeURL(addr), nil)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return &client{conn: conn, poll: 2 * time.Millisecond}, nil
}

func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// send writes one output report.
func (c *client) send(report []byte) error {
	if len(report) > proto.MaxReportLen {
		return fmt.Errorf("report of %d bytes exceeds %d", len(report), proto.MaxReportLen)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, report)
}

// statusRaw requests the input report. It is empty while the device has not
// registered its report handlers yet.
func (c *client) statusRaw() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(getStatus)); err != nil {
		return nil, err
	}
	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.BinaryMessage {
			return msg, nil
		}
	}
}

func (c *client) status() (proto.Status, error) {
	b, err := c.statusRaw()
	if err != nil {
		return proto.Status{}, err
	}
	return proto.ParseStatus(b)
}

// waitFor polls the status until cond holds or ctx is done.
func (c *client) waitFor(ctx context.Context, cond func([]byte) bool) ([]byte, error) {
	for {
		b, err := c.statusRaw()
		if err != nil {
			return nil, err
		}
		if cond(b) {
			return b, nil
		}
		select {
		case <-ctx.Done():
			return b, ctx.Err()
		case <-time.After(c.poll):
		}
	}
}

// waitReady blocks until the device answers with a full status report.
func (c *client) waitReady(ctx context.Context) (proto.Status, error) {
	b, err := c.waitFor(ctx, func(b []byte) bool { return len(b) >= proto.StatusLen })
	if err != nil {
		return proto.Status{}, fmt.Errorf("wait for device: %w", err)
	}
	return proto.ParseStatus(b)
}

// waitIdle blocks until neither the animation nor a storage write is in
// progress, so the next report is not discarded as busy. If mode is not nil
// the device must also be in that mode.
func (c *client) waitIdle(ctx context.Context, mode *proto.SessionMode) (proto.Status, error) {
	var last proto.Status
	_, err := c.waitFor(ctx, func(b []byte) bool {
		st, err := proto.ParseStatus(b)
		if err != nil {
			return false
		}
		last = st
		if mode != nil && st.Mode != *mode {
			return false
		}
		return !st.AnimationActive && !st.StorageWriteActive
	})
	if err != nil {
		return last, fmt.Errorf("wait for idle device (last %+v): %w", last, err)
	}
	return last, nil
}
