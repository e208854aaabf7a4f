package signaling

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/rtcsignal/internal/util"
)

const closeWriteTimeout = time.Second

// WSChannel is a Channel over a single gorilla/websocket connection.
// Writes are serialized by a mutex; reads happen on one goroutine started by
// Start.
type WSChannel struct {
	conn *websocket.Conn
	h    handlers

	writeMu sync.Mutex

	started   atomic.Bool
	closing   atomic.Bool
	closed    atomic.Bool
	finishOne sync.Once
	done      chan struct{}
}

// Connect dials the given WebSocket URL and returns a channel that is open
// for sending. Inbound delivery begins with Start.
func Connect(ctx context.Context, url string) (*WSChannel, error) {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, url, err)
	}
	return newWSChannel(conn), nil
}

func newWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{
		conn: conn,
		done: make(chan struct{}),
	}
}

func (c *WSChannel) OnMessage(fn func(string)) { c.h.setMessage(fn) }
func (c *WSChannel) OnOpen(fn func())          { c.h.setOpen(fn) }
func (c *WSChannel) OnError(fn func(error))    { c.h.setError(fn) }
func (c *WSChannel) OnClose(fn func())         { c.h.setClose(fn) }

// Done returns a channel that is closed once the connection has shut down.
func (c *WSChannel) Done() <-chan struct{} {
	return c.done
}

// Start fires the open handler and launches the read loop. Calls after the
// first are no-ops.
func (c *WSChannel) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	c.h.open()
	go c.readLoop()
}

// Send writes text as a single WebSocket text frame.
func (c *WSChannel) Send(text string) error {
	if c.closed.Load() || c.closing.Load() {
		return fmt.Errorf("%w: channel closed", ErrSendFailed)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	util.Stats.AddSent()
	return nil
}

// Close sends a close frame and tears down the connection. The close handler
// fires exactly once, either from the read loop or from here when Start was
// never called.
func (c *WSChannel) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWriteTimeout))
	c.writeMu.Unlock()

	err := c.conn.Close()
	if !c.started.Load() {
		c.finish(nil)
	}
	return err
}

// readLoop delivers frames in arrival order until the connection fails.
// Binary frames are treated as UTF-8 text.
func (c *WSChannel) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}
		util.Stats.AddRecv()
		c.h.message(string(data))
	}
}

// finish marks the channel closed and fires the error (if the failure was not
// an orderly close) and close handlers once.
func (c *WSChannel) finish(err error) {
	c.finishOne.Do(func() {
		c.closed.Store(true)
		_ = c.conn.Close()

		if err != nil && !c.closing.Load() &&
			!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.h.error(err)
		}
		c.h.close()
		close(c.done)
	})
}
