// Package signaling provides the duplex text transport between two peers:
// the Channel abstraction, its WebSocket implementation, and a relay server
// that forwards messages between connected clients.
package signaling

import "errors"

var (
	// ErrConnect is returned when the transport could not be established.
	ErrConnect = errors.New("signaling: connect failed")

	// ErrSendFailed is returned when a message is sent on a channel that is
	// not open, or the underlying write fails.
	ErrSendFailed = errors.New("signaling: send failed")
)

// Channel is a message-oriented duplex transport to the remote peer.
//
// Inbound messages are delivered in transport arrival order from a single
// goroutine. The channel does not retry, deduplicate or reorder; callers rely
// on the transport for those guarantees.
//
// Each On* registration replaces the previous handler. Handlers should be
// registered before Start.
type Channel interface {
	// Send writes one text message. Safe for concurrent use.
	Send(text string) error

	OnMessage(fn func(text string))
	OnOpen(fn func())
	OnError(fn func(err error))
	OnClose(fn func())

	// Start begins inbound delivery and fires the open handler.
	Start()

	// Close shuts the transport down. The close handler fires once.
	Close() error
}
