// Package peertest provides an in-memory peer.Engine for tests.
package peertest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/1ureka/rtcsignal/internal/peer"
)

// CommitSuffix is appended by Engine.SetLocalDescription to the SDP it
// commits, so tests can tell a committed description from the one that was
// passed in.
const CommitSuffix = "a=committed\r\n"

// Op names recorded in Call.Op.
const (
	OpCreateOffer          = "createOffer"
	OpCreateAnswer         = "createAnswer"
	OpSetLocalDescription  = "setLocalDescription"
	OpSetRemoteDescription = "setRemoteDescription"
	OpAddICECandidate      = "addIceCandidate"
)

// Call is one recorded engine invocation.
type Call struct {
	Op        string
	Desc      peer.SessionDescription
	Candidate peer.ICECandidate
}

// Engine is a fake peer.Engine with a minimal signaling-state model:
// stable, have-local-offer and have-remote-offer. A remote description whose
// SDP starts with "bad" is rejected, as is a candidate whose line is "bad".
type Engine struct {
	// Gate, when set, is called at the start of every operation. Tests use
	// it to hold an operation open.
	Gate func(op string)

	// Fail, when set, is called after Gate. A non-nil result is returned by
	// the operation before it changes any state.
	Fail func(op string) error

	mu        sync.Mutex
	calls     []Call
	state     string
	committed *peer.SessionDescription
	offers    int
	answers   int
	closed    bool

	inFlight atomic.Int32
	overlap  atomic.Bool

	onCandidate func(peer.ICECandidate)
	onTrack     func(peer.Track)
	onState     func(peer.ConnectionState)
	onSignaling func(peer.SignalingState)
	onICE       func(peer.ICEConnectionState)
}

var _ peer.Engine = (*Engine)(nil)

// NewEngine returns an Engine in the stable state.
func NewEngine() *Engine {
	return &Engine{state: "stable"}
}

// enter records the call and tracks concurrent use. The returned func must
// be deferred.
func (e *Engine) enter(c Call) func() {
	if e.inFlight.Add(1) > 1 {
		e.overlap.Store(true)
	}
	e.mu.Lock()
	e.calls = append(e.calls, c)
	e.mu.Unlock()

	if e.Gate != nil {
		e.Gate(c.Op)
	}
	return func() { e.inFlight.Add(-1) }
}

func (e *Engine) injected(op string) error {
	if e.Fail == nil {
		return nil
	}
	return e.Fail(op)
}

// setState moves the signaling state and reports it. Called with e.mu held.
func (e *Engine) setState(state string) {
	e.state = state
	if e.onSignaling != nil {
		e.onSignaling(peer.SignalingState(state))
	}
}

func (e *Engine) CreateOffer() (peer.SessionDescription, error) {
	defer e.enter(Call{Op: OpCreateOffer})()
	if err := e.injected(OpCreateOffer); err != nil {
		return peer.SessionDescription{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.offers++
	return peer.SessionDescription{
		Type: peer.SDPTypeOffer,
		SDP:  fmt.Sprintf("v=0\r\no=fake %d\r\n", e.offers),
	}, nil
}

func (e *Engine) CreateAnswer() (peer.SessionDescription, error) {
	defer e.enter(Call{Op: OpCreateAnswer})()
	if err := e.injected(OpCreateAnswer); err != nil {
		return peer.SessionDescription{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != "have-remote-offer" {
		return peer.SessionDescription{}, fmt.Errorf("createAnswer in state %s", e.state)
	}
	e.answers++
	return peer.SessionDescription{
		Type: peer.SDPTypeAnswer,
		SDP:  fmt.Sprintf("v=0\r\no=fake-answer %d\r\n", e.answers),
	}, nil
}

func (e *Engine) SetLocalDescription(desc peer.SessionDescription) error {
	defer e.enter(Call{Op: OpSetLocalDescription, Desc: desc})()
	if err := e.injected(OpSetLocalDescription); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case desc.Type == peer.SDPTypeOffer && e.state == "stable":
		e.setState("have-local-offer")
	case desc.Type == peer.SDPTypeAnswer && e.state == "have-remote-offer":
		e.setState("stable")
	default:
		return fmt.Errorf("local %s in state %s", desc.Type, e.state)
	}

	committed := peer.SessionDescription{Type: desc.Type, SDP: desc.SDP + CommitSuffix}
	e.committed = &committed
	return nil
}

func (e *Engine) SetRemoteDescription(desc peer.SessionDescription) error {
	defer e.enter(Call{Op: OpSetRemoteDescription, Desc: desc})()
	if err := e.injected(OpSetRemoteDescription); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if strings.HasPrefix(desc.SDP, "bad") {
		return errors.New("malformed SDP")
	}
	switch {
	case desc.Type == peer.SDPTypeOffer && e.state == "stable":
		e.setState("have-remote-offer")
	case desc.Type == peer.SDPTypeAnswer && e.state == "have-local-offer":
		e.setState("stable")
	default:
		return fmt.Errorf("remote %s in state %s", desc.Type, e.state)
	}
	return nil
}

func (e *Engine) AddICECandidate(c peer.ICECandidate) error {
	defer e.enter(Call{Op: OpAddICECandidate, Candidate: c})()
	if err := e.injected(OpAddICECandidate); err != nil {
		return err
	}
	if c.Candidate == "bad" {
		return errors.New("invalid candidate")
	}
	return nil
}

func (e *Engine) LocalDescription() (peer.SessionDescription, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.committed == nil {
		return peer.SessionDescription{}, false
	}
	return *e.committed, true
}

func (e *Engine) OnICECandidate(fn func(peer.ICECandidate)) {
	e.mu.Lock()
	e.onCandidate = fn
	e.mu.Unlock()
}

func (e *Engine) OnTrack(fn func(peer.Track)) {
	e.mu.Lock()
	e.onTrack = fn
	e.mu.Unlock()
}

func (e *Engine) OnConnectionStateChange(fn func(peer.ConnectionState)) {
	e.mu.Lock()
	e.onState = fn
	e.mu.Unlock()
}

func (e *Engine) OnSignalingStateChange(fn func(peer.SignalingState)) {
	e.mu.Lock()
	e.onSignaling = fn
	e.mu.Unlock()
}

func (e *Engine) OnICEConnectionStateChange(fn func(peer.ICEConnectionState)) {
	e.mu.Lock()
	e.onICE = fn
	e.mu.Unlock()
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// ---------------------------------------------------------------------------
// Test controls
// ---------------------------------------------------------------------------

// EmitCandidate simulates the engine discovering a local candidate.
func (e *Engine) EmitCandidate(c peer.ICECandidate) {
	e.mu.Lock()
	fn := e.onCandidate
	e.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

// EmitTrack simulates a remote track arriving.
func (e *Engine) EmitTrack(t peer.Track) {
	e.mu.Lock()
	fn := e.onTrack
	e.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

// EmitState simulates a connection state change.
func (e *Engine) EmitState(s peer.ConnectionState) {
	e.mu.Lock()
	fn := e.onState
	e.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// EmitICEState simulates an ICE connection state change.
func (e *Engine) EmitICEState(s peer.ICEConnectionState) {
	e.mu.Lock()
	fn := e.onICE
	e.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Calls returns a copy of every recorded call, in order.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Count returns how many times op was called.
func (e *Engine) Count(op string) int {
	n := 0
	for _, c := range e.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Overlapped reports whether two operations were ever in flight at once.
func (e *Engine) Overlapped() bool {
	return e.overlap.Load()
}

// SignalingState returns the fake's signaling state.
func (e *Engine) SignalingState() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
