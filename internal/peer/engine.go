package peer

import (
	"errors"
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// Engine is the peer-connection implementation a Controller drives. Every
// method may block until the engine resolves the request.
type Engine interface {
	CreateOffer() (SessionDescription, error)
	CreateAnswer() (SessionDescription, error)
	SetLocalDescription(desc SessionDescription) error
	SetRemoteDescription(desc SessionDescription) error
	AddICECandidate(c ICECandidate) error

	// LocalDescription returns the description the engine has committed
	// locally, if any.
	LocalDescription() (SessionDescription, bool)

	OnICECandidate(fn func(ICECandidate))
	OnTrack(fn func(Track))
	OnConnectionStateChange(fn func(ConnectionState))
	OnSignalingStateChange(fn func(SignalingState))
	OnICEConnectionStateChange(fn func(ICEConnectionState))

	Close() error
}

// pionEngine is the Engine backed by a pion PeerConnection.
type pionEngine struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel
}

var _ Engine = (*pionEngine)(nil)

// newPionEngine builds a PeerConnection with pion's default codecs and
// interceptors, routes pion's logs to lf, and applies cfg's transceivers and
// data channel.
func newPionEngine(cfg Config, lf logging.LoggerFactory) (*pionEngine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{LoggerFactory: lf}
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	)

	pc, err := api.NewPeerConnection(cfg.webrtcConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to create PeerConnection: %w", err)
	}
	e := &pionEngine{pc: pc}

	for _, kind := range cfg.Receive {
		codecType := webrtc.NewRTPCodecType(kind)
		if codecType == 0 {
			pc.Close()
			return nil, fmt.Errorf("unknown media kind %q", kind)
		}
		if _, err := pc.AddTransceiverFromKind(codecType, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to add %s transceiver: %w", kind, err)
		}
	}

	if cfg.DataChannel != "" {
		dc, err := newDataChannel(pc, cfg.DataChannel)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to create DataChannel: %w", err)
		}
		e.dc = dc
	}

	return e, nil
}

func (e *pionEngine) CreateOffer() (SessionDescription, error) {
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return SessionDescription{}, err
	}
	return fromWebRTC(offer), nil
}

func (e *pionEngine) CreateAnswer() (SessionDescription, error) {
	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return SessionDescription{}, err
	}
	return fromWebRTC(answer), nil
}

func (e *pionEngine) SetLocalDescription(desc SessionDescription) error {
	return e.pc.SetLocalDescription(toWebRTC(desc))
}

func (e *pionEngine) SetRemoteDescription(desc SessionDescription) error {
	return e.pc.SetRemoteDescription(toWebRTC(desc))
}

func (e *pionEngine) AddICECandidate(c ICECandidate) error {
	return e.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	})
}

func (e *pionEngine) LocalDescription() (SessionDescription, bool) {
	ld := e.pc.LocalDescription()
	if ld == nil {
		return SessionDescription{}, false
	}
	return fromWebRTC(*ld), true
}

// OnICECandidate forwards each gathered candidate. pion's nil end-of-gathering
// marker is not forwarded.
func (e *pionEngine) OnICECandidate(fn func(ICECandidate)) {
	e.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		fn(ICECandidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})
}

func (e *pionEngine) OnTrack(fn func(Track)) {
	e.pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(Track{
			ID:       tr.ID(),
			StreamID: tr.StreamID(),
			Kind:     tr.Kind().String(),
		})
	})
}

func (e *pionEngine) OnConnectionStateChange(fn func(ConnectionState)) {
	e.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		fn(ConnectionState(state.String()))
	})
}

func (e *pionEngine) OnSignalingStateChange(fn func(SignalingState)) {
	e.pc.OnSignalingStateChange(func(state webrtc.SignalingState) {
		fn(SignalingState(state.String()))
	})
}

func (e *pionEngine) OnICEConnectionStateChange(fn func(ICEConnectionState)) {
	e.pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		fn(ICEConnectionState(state.String()))
	})
}

// Close shuts down the DataChannel (if any) and the PeerConnection.
func (e *pionEngine) Close() error {
	var dcErr error
	if e.dc != nil {
		dcErr = e.dc.Close()
	}
	return errors.Join(dcErr, e.pc.Close())
}

func fromWebRTC(desc webrtc.SessionDescription) SessionDescription {
	t := SDPTypeOffer
	if desc.Type == webrtc.SDPTypeAnswer {
		t = SDPTypeAnswer
	}
	return SessionDescription{Type: t, SDP: desc.SDP}
}

func toWebRTC(desc SessionDescription) webrtc.SessionDescription {
	t := webrtc.SDPTypeOffer
	if desc.Type == SDPTypeAnswer {
		t = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: t, SDP: desc.SDP}
}
