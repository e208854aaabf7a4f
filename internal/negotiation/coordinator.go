// Package negotiation drives the offer/answer exchange between two peers over
// a signaling channel.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/1ureka/rtcsignal/internal/peer"
	"github.com/1ureka/rtcsignal/internal/signaling"
	"github.com/1ureka/rtcsignal/internal/util"
)

var (
	// ErrClosed is returned by operations on a Coordinator that has shut
	// down, and by chains dropped from the queue at teardown.
	ErrClosed = errors.New("negotiation: closed")

	// ErrOfferPending is returned by Offer while a local offer is waiting
	// for its answer.
	ErrOfferPending = errors.New("negotiation: offer pending")

	// ErrAnswerPending is returned by Offer when a remote offer was applied
	// but answering it failed. The connection stays in HAVE_REMOTE_OFFER until
	// the remote side starts a new round.
	ErrAnswerPending = errors.New("negotiation: remote offer not answered")
)

// Options configures a Coordinator.
type Options struct {
	// LoggerFactory receives the coordinator's log output. Nil means pion's
	// default factory.
	LoggerFactory logging.LoggerFactory
}

// Coordinator owns the negotiation state of one connection. It parses
// inbound signaling messages, drives the Controller, and sends the resulting
// descriptions and candidates back over the channel.
//
// Every chain of engine calls runs on a single worker, one at a time, in the
// order it was submitted. Inbound messages are parsed and dispatched in
// arrival order on the channel's delivery goroutine.
type Coordinator struct {
	id   string
	ch   signaling.Channel
	ctrl *peer.Controller
	log  logging.LeveledLogger

	queue *chainQueue

	mu    sync.RWMutex
	state State

	app      appHandlers
	releases []func()

	done      chan struct{}
	closeOnce sync.Once
}

// New wires a Coordinator between ch and ctrl and starts its chain worker.
// Inbound delivery begins with Start. The Coordinator takes ownership of
// both: the controller is closed when the connection shuts down.
func New(ch signaling.Channel, ctrl *peer.Controller, opts Options) *Coordinator {
	lf := opts.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	c := &Coordinator{
		id:    uuid.NewString()[:8],
		ch:    ch,
		ctrl:  ctrl,
		log:   lf.NewLogger("negotiation"),
		queue: newChainQueue(),
		state: StateIdle,
		done:  make(chan struct{}),
	}

	ch.OnMessage(c.HandleMessage)
	ch.OnOpen(c.handleOpen)
	ch.OnError(c.handleError)
	ch.OnClose(c.shutdown)

	c.releases = append(c.releases,
		ctrl.OnICECandidate(c.sendCandidate),
		ctrl.OnTrack(c.app.track),
	)

	go c.queue.run(c.report)
	return c
}

// ID returns the short identifier used in this connection's log lines.
func (c *Coordinator) ID() string { return c.id }

// Start begins inbound delivery on the channel.
func (c *Coordinator) Start() {
	c.ch.Start()
}

// State returns the current negotiation state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// setState moves to s. CLOSED is terminal.
func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	prev := c.state
	if prev == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	if prev != s {
		c.log.Debugf("[%s] state %s -> %s", c.id, prev, s)
	}
}

// ---------------------------------------------------------------------------
// Application surface
// ---------------------------------------------------------------------------

// OnOpen registers fn to run once the channel is open.
func (c *Coordinator) OnOpen(fn func()) { c.app.setOpen(fn) }

// OnMessage registers fn to receive pass-through traffic: every inbound
// payload that is not a negotiation message, verbatim.
func (c *Coordinator) OnMessage(fn func(string)) { c.app.setMessage(fn) }

// OnError registers fn to receive channel errors and failed chains.
func (c *Coordinator) OnError(fn func(error)) { c.app.setError(fn) }

// OnTrack registers fn to receive remote tracks.
func (c *Coordinator) OnTrack(fn func(peer.Track)) { c.app.setTrack(fn) }

// Send writes an application payload to the remote peer as-is.
func (c *Coordinator) Send(text string) error {
	if c.State() == StateClosed {
		return ErrClosed
	}
	return c.ch.Send(text)
}

// Done is closed once the connection has shut down and the controller has
// been released.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Close closes the channel and tears the connection down.
func (c *Coordinator) Close() error {
	err := c.ch.Close()
	c.shutdown()
	return err
}

// ---------------------------------------------------------------------------
// Channel events
// ---------------------------------------------------------------------------

func (c *Coordinator) handleOpen() {
	c.log.Infof("[%s] signaling channel open", c.id)
	c.app.open()
}

func (c *Coordinator) handleError(err error) {
	c.log.Errorf("[%s] signaling channel error: %v", c.id, err)
	c.app.error(err)
	c.shutdown()
}

// shutdown moves to CLOSED, drops queued chains and releases every
// subscription. The controller is closed once the chain in flight, if any,
// has finished.
func (c *Coordinator) shutdown() {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		c.log.Infof("[%s] connection closed", c.id)

		c.queue.close()
		for _, release := range c.releases {
			release()
		}

		go func() {
			<-c.queue.stopped
			if err := c.ctrl.Close(); err != nil {
				c.log.Warnf("[%s] closing peer: %v", c.id, err)
			}
			close(c.done)
		}()
	})
}

// ---------------------------------------------------------------------------
// Inbound
// ---------------------------------------------------------------------------

// HandleMessage parses one inbound payload and dispatches it. Negotiation
// messages are consumed; anything else reaches the OnMessage handler
// unchanged.
func (c *Coordinator) HandleMessage(payload string) {
	if c.State() == StateClosed {
		return
	}

	msg, err := Decode(payload)
	if err != nil {
		c.log.Debugf("[%s] passing through: %v", c.id, err)
	}

	switch msg.Kind {
	case KindOpaque:
		c.app.message(msg.Raw)
	case KindOffer:
		c.enqueue("remote offer", func() error { return c.acceptOffer(msg.Description) })
	case KindAnswer:
		c.enqueue("remote answer", func() error { return c.acceptAnswer(msg.Description) })
	case KindCandidate:
		c.enqueue("remote candidate", func() error { return c.ctrl.AddICECandidate(msg.Candidate) })
	default:
		c.log.Warnf("[%s] ignoring message of unknown type %q", c.id, msg.Raw)
	}
}

// acceptOffer answers a remote offer. The answer sent is the one the engine
// committed.
func (c *Coordinator) acceptOffer(offer peer.SessionDescription) error {
	if err := c.ctrl.SetRemoteDescription(offer); err != nil {
		return err
	}
	c.setState(StateHaveRemoteOffer)

	answer, err := c.ctrl.CreateAnswer()
	if err != nil {
		return err
	}
	committed, err := c.ctrl.SetLocalDescription(answer)
	if err != nil {
		return err
	}
	c.setState(StateStable)

	return c.send(AnswerMessage(committed))
}

func (c *Coordinator) acceptAnswer(answer peer.SessionDescription) error {
	if err := c.ctrl.SetRemoteDescription(answer); err != nil {
		return err
	}
	c.setState(StateStable)
	return nil
}

// ---------------------------------------------------------------------------
// Outbound
// ---------------------------------------------------------------------------

// Offer starts a round from IDLE or STABLE and returns once the committed
// offer has been sent. ctx bounds only the wait; a chain already queued
// still runs.
//
// Offer returns ErrOfferPending while a local offer is outstanding and
// ErrAnswerPending after a remote offer whose answer failed. A failed answer
// is not rolled back.
func (c *Coordinator) Offer(ctx context.Context) error {
	return c.await(ctx, "local offer", c.makeOffer)
}

func (c *Coordinator) makeOffer() error {
	switch s := c.State(); {
	case s == StateClosed:
		return ErrClosed
	case s == StateHaveRemoteOffer:
		return ErrAnswerPending
	case !s.canStartRound():
		return fmt.Errorf("%w: state %s", ErrOfferPending, s)
	}

	offer, err := c.ctrl.CreateOffer()
	if err != nil {
		return err
	}
	committed, err := c.ctrl.SetLocalDescription(offer)
	if err != nil {
		return err
	}
	c.setState(StateHaveLocalOffer)

	return c.send(OfferMessage(committed))
}

// Flush waits until every chain queued before the call has run.
func (c *Coordinator) Flush(ctx context.Context) error {
	return c.await(ctx, "flush", func() error { return nil })
}

// sendCandidate queues a local candidate behind whatever chain is running,
// so it never overtakes the description it belongs to.
func (c *Coordinator) sendCandidate(cand peer.ICECandidate) {
	c.enqueue("local candidate", func() error {
		return c.send(CandidateMessage(cand))
	})
}

func (c *Coordinator) send(m Message) error {
	text, err := Encode(m)
	if err != nil {
		return err
	}
	if err := c.ch.Send(text); err != nil {
		return err
	}
	c.log.Tracef("[%s] sent %s", c.id, m.Kind)
	return nil
}

// ---------------------------------------------------------------------------
// Chains
// ---------------------------------------------------------------------------

// enqueue submits a fire-and-forget chain. Failures go to OnError.
func (c *Coordinator) enqueue(name string, run func() error) {
	if err := c.queue.push(&chain{name: name, run: run}); err != nil {
		c.log.Debugf("[%s] %s dropped: %v", c.id, name, err)
	}
}

// await submits a chain and waits for its result or for ctx.
func (c *Coordinator) await(ctx context.Context, name string, run func() error) error {
	done := make(chan error, 1)
	if err := c.queue.push(&chain{name: name, run: run, done: done}); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// report records the outcome of a finished chain. A failure aborts only that
// chain: it is logged and handed to the waiter or, for background chains, to
// OnError. The connection stays up.
func (c *Coordinator) report(ch *chain, err error) {
	if err == nil {
		util.Stats.AddChain()
		if ch.done != nil {
			ch.done <- nil
		}
		return
	}

	util.Stats.AddChainFailed()
	err = fmt.Errorf("%s: %w", ch.name, err)
	c.log.Warnf("[%s] %v", c.id, err)

	if ch.done != nil {
		ch.done <- err
		return
	}
	c.app.error(err)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// appHandlers holds the application callbacks. Each setter replaces the
// previous callback.
type appHandlers struct {
	mu        sync.RWMutex
	onOpen    func()
	onMessage func(string)
	onError   func(error)
	onTrack   func(peer.Track)
}

func (h *appHandlers) setOpen(fn func()) {
	h.mu.Lock()
	h.onOpen = fn
	h.mu.Unlock()
}

func (h *appHandlers) setMessage(fn func(string)) {
	h.mu.Lock()
	h.onMessage = fn
	h.mu.Unlock()
}

func (h *appHandlers) setError(fn func(error)) {
	h.mu.Lock()
	h.onError = fn
	h.mu.Unlock()
}

func (h *appHandlers) setTrack(fn func(peer.Track)) {
	h.mu.Lock()
	h.onTrack = fn
	h.mu.Unlock()
}

func (h *appHandlers) open() {
	h.mu.RLock()
	fn := h.onOpen
	h.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (h *appHandlers) message(text string) {
	h.mu.RLock()
	fn := h.onMessage
	h.mu.RUnlock()
	if fn != nil {
		fn(text)
	}
}

func (h *appHandlers) error(err error) {
	h.mu.RLock()
	fn := h.onError
	h.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (h *appHandlers) track(t peer.Track) {
	h.mu.RLock()
	fn := h.onTrack
	h.mu.RUnlock()
	if fn != nil {
		fn(t)
	}
}
