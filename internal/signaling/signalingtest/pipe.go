// Package signalingtest provides an in-memory signaling.Channel pair for
// tests, carried over a pion test.Bridge.
package signalingtest

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"

	"github.com/1ureka/rtcsignal/internal/signaling"
)

const (
	// Bridge packets are read into a fixed buffer; larger frames are split
	// across writes and reassembled on the read side.
	chunkSize = 16 * 1024

	frameHeaderSize = 4

	tickInterval = time.Millisecond
)

// bridge owns the shared test.Bridge and the goroutine that moves packets
// across it.
type bridge struct {
	br   *test.Bridge
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func newBridge() *bridge {
	b := &bridge{br: test.NewBridge(), stop: make(chan struct{})}
	b.wg.Add(1)
	go b.tick()
	return b
}

func (b *bridge) tick() {
	defer b.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for b.br.Tick() > 0 {
			}
		case <-b.stop:
			return
		}
	}
}

// close stops packet delivery. It must run before the conns are closed.
func (b *bridge) close() {
	b.once.Do(func() {
		close(b.stop)
		b.wg.Wait()
	})
}

// Channel is one end of an in-memory signaling pipe. Messages are written to
// the bridge as length-prefixed frames and delivered in send order.
type Channel struct {
	br   *bridge
	conn net.Conn
	peer *Channel
	h    handlers

	writeMu sync.Mutex

	mu      sync.Mutex
	started bool
	closed  bool
	once    sync.Once
}

var _ signaling.Channel = (*Channel)(nil)

// Pipe returns two linked channels: whatever a sends, b receives and vice
// versa. Messages sent before Start are held until the receiver starts.
// Closing either side closes both.
func Pipe() (a, b *Channel) {
	br := newBridge()
	a = &Channel{br: br, conn: br.br.GetConn0()}
	b = &Channel{br: br, conn: br.br.GetConn1()}
	a.peer = b
	b.peer = a
	return a, b
}

func (c *Channel) OnMessage(fn func(string)) { c.h.setMessage(fn) }
func (c *Channel) OnOpen(fn func())          { c.h.setOpen(fn) }
func (c *Channel) OnError(fn func(error))    { c.h.setError(fn) }
func (c *Channel) OnClose(fn func())         { c.h.setClose(fn) }

// Start fires the open handler and begins reading from the bridge.
func (c *Channel) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.h.open()
	go c.readLoop()
}

func (c *Channel) readLoop() {
	buf := make([]byte, chunkSize)
	var pending []byte
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			c.shutdown(fmt.Errorf("pipe read: %w", err))
			return
		}
		pending = append(pending, buf[:n]...)

		for len(pending) >= frameHeaderSize {
			size := int(binary.BigEndian.Uint32(pending))
			if len(pending) < frameHeaderSize+size {
				break
			}
			text := string(pending[frameHeaderSize : frameHeaderSize+size])
			pending = pending[frameHeaderSize+size:]

			if c.isClosed() {
				return
			}
			c.h.message(text)
		}
	}
}

// Send frames text and writes it to the bridge.
func (c *Channel) Send(text string) error {
	if c.isClosed() {
		return fmt.Errorf("%w: pipe closed", signaling.ErrSendFailed)
	}

	frame := make([]byte, frameHeaderSize+len(text))
	binary.BigEndian.PutUint32(frame, uint32(len(text)))
	copy(frame[frameHeaderSize:], text)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for len(frame) > 0 {
		n := min(len(frame), chunkSize)
		if _, err := c.conn.Write(frame[:n]); err != nil {
			return fmt.Errorf("%w: %v", signaling.ErrSendFailed, err)
		}
		frame = frame[n:]
	}
	return nil
}

// Fail simulates a transport error: the error handler fires on c, then both
// ends close.
func (c *Channel) Fail(err error) {
	c.br.close()
	c.shutdown(err)
	c.peer.shutdown(nil)
}

// Close closes both ends of the pipe.
func (c *Channel) Close() error {
	c.br.close()
	c.shutdown(nil)
	c.peer.shutdown(nil)
	return nil
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// shutdown marks c closed, unblocks its reader and fires the handlers once.
// A read error after a local close lands here as a no-op.
func (c *Channel) shutdown(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.writeMu.Lock()
		_ = c.conn.Close()
		c.writeMu.Unlock()

		if err != nil {
			c.h.error(err)
		}
		c.h.close()
	})
}
