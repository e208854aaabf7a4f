package peer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/sdp/v3"
)

// Controller wraps exactly one Engine for the lifetime of a connection.
//
// Description and candidate operations block until the engine resolves them.
// Failures are wrapped in ErrDescriptionRejected / ErrCandidateRejected and
// always returned to the caller. Candidate and track events are fanned out
// to subscribers held in registries owned by the Controller, released on
// Close.
type Controller struct {
	engine Engine
	log    logging.LeveledLogger

	candidates *registry[ICECandidate]
	tracks     *registry[Track]

	mu        sync.RWMutex
	state     ConnectionState
	signaling SignalingState
	ice       ICEConnectionState

	closeOnce sync.Once
	closeErr  error
}

// New creates a Controller backed by a pion PeerConnection built from cfg.
// lf receives both the Controller's and pion's own log output.
func New(cfg Config, lf logging.LoggerFactory) (*Controller, error) {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	engine, err := newPionEngine(cfg, lf)
	if err != nil {
		return nil, err
	}
	return NewController(engine, lf), nil
}

// NewController wraps an existing engine.
func NewController(engine Engine, lf logging.LoggerFactory) *Controller {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	c := &Controller{
		engine:     engine,
		log:        lf.NewLogger("peer"),
		candidates: newRegistry[ICECandidate](),
		tracks:     newRegistry[Track](),
		state:      ConnectionStateNew,
	}

	engine.OnICECandidate(func(cand ICECandidate) {
		c.log.Tracef("local candidate: %s", cand.Candidate)
		c.candidates.emit(cand)
	})
	engine.OnTrack(func(t Track) {
		c.log.Infof("remote %s track %s (stream %s)", t.Kind, t.ID, t.StreamID)
		c.tracks.emit(t)
	})
	engine.OnConnectionStateChange(func(s ConnectionState) {
		c.log.Infof("PeerConnection state: %s", s)
		c.mu.Lock()
		c.state = s
		c.mu.Unlock()
	})
	engine.OnSignalingStateChange(func(s SignalingState) {
		c.log.Debugf("signaling state: %s", s)
		c.mu.Lock()
		c.signaling = s
		c.mu.Unlock()
	})
	engine.OnICEConnectionStateChange(func(s ICEConnectionState) {
		c.log.Debugf("ICE connection state: %s", s)
		c.mu.Lock()
		c.ice = s
		c.mu.Unlock()
	})

	return c
}

// ---------------------------------------------------------------------------
// Negotiation
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (c *Controller) CreateOffer() (SessionDescription, error) {
	offer, err := c.engine.CreateOffer()
	if err != nil {
		return SessionDescription{}, fmt.Errorf("CreateOffer: %w", err)
	}
	return offer, nil
}

// CreateAnswer generates an SDP answer to the applied remote offer.
func (c *Controller) CreateAnswer() (SessionDescription, error) {
	answer, err := c.engine.CreateAnswer()
	if err != nil {
		return SessionDescription{}, fmt.Errorf("CreateAnswer: %w", err)
	}
	return answer, nil
}

// SetLocalDescription commits desc and returns the description as the engine
// committed it. Callers must transmit the returned value, not desc.
func (c *Controller) SetLocalDescription(desc SessionDescription) (SessionDescription, error) {
	if err := c.engine.SetLocalDescription(desc); err != nil {
		return SessionDescription{}, fmt.Errorf("%w: local %s: %w", ErrDescriptionRejected, desc.Type, err)
	}

	committed, ok := c.engine.LocalDescription()
	if !ok {
		return SessionDescription{}, fmt.Errorf("%w: local %s not committed", ErrDescriptionRejected, desc.Type)
	}
	c.log.Debugf("local %s committed: %s", committed.Type, summarizeSDP(committed.SDP))
	return committed, nil
}

// SetRemoteDescription applies the remote SDP.
func (c *Controller) SetRemoteDescription(desc SessionDescription) error {
	if err := c.engine.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("%w: remote %s: %w", ErrDescriptionRejected, desc.Type, err)
	}
	c.log.Debugf("remote %s applied: %s", desc.Type, summarizeSDP(desc.SDP))
	return nil
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (c *Controller) AddICECandidate(cand ICECandidate) error {
	if err := c.engine.AddICECandidate(cand); err != nil {
		return fmt.Errorf("%w: %w", ErrCandidateRejected, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// OnICECandidate subscribes fn to locally gathered candidates, delivered as
// soon as the engine surfaces them. The returned func unsubscribes.
func (c *Controller) OnICECandidate(fn func(ICECandidate)) (release func()) {
	return c.candidates.add(fn)
}

// OnTrack subscribes fn to remote tracks. The returned func unsubscribes.
func (c *Controller) OnTrack(fn func(Track)) (release func()) {
	return c.tracks.add(fn)
}

// ConnectionState returns the last observed engine connection state.
func (c *Controller) ConnectionState() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SignalingState returns the last signaling state the engine reported, or ""
// before the first change.
func (c *Controller) SignalingState() SignalingState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.signaling
}

// ICEConnectionState returns the last ICE connection state the engine
// reported, or "" before the first change.
func (c *Controller) ICEConnectionState() ICEConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ice
}

// Close releases every subscription, then closes the engine. Safe to call
// more than once.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.candidates.reset()
		c.tracks.reset()
		c.closeErr = c.engine.Close()
	})
	return c.closeErr
}

// summarizeSDP renders the media sections of raw for debug logs.
func summarizeSDP(raw string) string {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(raw)); err != nil {
		return "unparsable SDP"
	}

	kinds := make([]string, 0, len(sd.MediaDescriptions))
	for _, md := range sd.MediaDescriptions {
		kinds = append(kinds, md.MediaName.Media)
	}
	return fmt.Sprintf("%d media section(s) [%s]", len(kinds), strings.Join(kinds, ","))
}
