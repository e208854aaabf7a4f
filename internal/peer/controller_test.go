package peer_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/pion/logging"

	"github.com/1ureka/rtcsignal/internal/peer"
	"github.com/1ureka/rtcsignal/internal/peer/peertest"
)

func newFakeController(t *testing.T) (*peer.Controller, *peertest.Engine) {
	t.Helper()
	engine := peertest.NewEngine()
	ctrl := peer.NewController(engine, logging.NewDefaultLoggerFactory())
	t.Cleanup(func() { ctrl.Close() })
	return ctrl, engine
}

// TestSetLocalDescriptionReturnsCommitted verifies that the description
// returned is the one the engine committed, not the one passed in.
func TestSetLocalDescriptionReturnsCommitted(t *testing.T) {
	ctrl, _ := newFakeController(t)

	offer, err := ctrl.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}

	committed, err := ctrl.SetLocalDescription(offer)
	if err != nil {
		t.Fatalf("SetLocalDescription failed: %v", err)
	}
	if committed.SDP != offer.SDP+peertest.CommitSuffix {
		t.Errorf("committed SDP = %q, want engine-committed value", committed.SDP)
	}
	if committed.Type != peer.SDPTypeOffer {
		t.Errorf("committed type = %s, want offer", committed.Type)
	}
}

func TestDescriptionRejectedIsSurfaced(t *testing.T) {
	testCases := []struct {
		name string
		run  func(*peer.Controller) error
	}{
		{
			name: "malformed remote SDP",
			run: func(c *peer.Controller) error {
				return c.SetRemoteDescription(peer.SessionDescription{Type: peer.SDPTypeOffer, SDP: "bad sdp"})
			},
		},
		{
			name: "remote answer with no local offer",
			run: func(c *peer.Controller) error {
				return c.SetRemoteDescription(peer.SessionDescription{Type: peer.SDPTypeAnswer, SDP: "v=0"})
			},
		},
		{
			name: "local answer with no remote offer",
			run: func(c *peer.Controller) error {
				_, err := c.SetLocalDescription(peer.SessionDescription{Type: peer.SDPTypeAnswer, SDP: "v=0"})
				return err
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ctrl, _ := newFakeController(t)
			if err := tc.run(ctrl); !errors.Is(err, peer.ErrDescriptionRejected) {
				t.Fatalf("got %v, want ErrDescriptionRejected", err)
			}
		})
	}
}

func TestCandidateRejected(t *testing.T) {
	ctrl, engine := newFakeController(t)

	if err := ctrl.AddICECandidate(peer.ICECandidate{Candidate: "bad"}); !errors.Is(err, peer.ErrCandidateRejected) {
		t.Fatalf("got %v, want ErrCandidateRejected", err)
	}
	if err := ctrl.AddICECandidate(peer.ICECandidate{Candidate: "candidate:1 1 udp 1 10.0.0.1 9 typ host"}); err != nil {
		t.Fatalf("valid candidate rejected: %v", err)
	}
	if n := engine.Count(peertest.OpAddICECandidate); n != 2 {
		t.Errorf("engine saw %d addIceCandidate calls, want 2", n)
	}
}

func TestSubscriptionsFanOutAndRelease(t *testing.T) {
	ctrl, engine := newFakeController(t)

	var first, second []string
	releaseFirst := ctrl.OnICECandidate(func(c peer.ICECandidate) { first = append(first, c.Candidate) })
	ctrl.OnICECandidate(func(c peer.ICECandidate) { second = append(second, c.Candidate) })

	engine.EmitCandidate(peer.ICECandidate{Candidate: "c1"})
	releaseFirst()
	releaseFirst()
	engine.EmitCandidate(peer.ICECandidate{Candidate: "c2"})

	if strings.Join(first, ",") != "c1" {
		t.Errorf("first subscriber saw %v, want [c1]", first)
	}
	if strings.Join(second, ",") != "c1,c2" {
		t.Errorf("second subscriber saw %v, want [c1 c2]", second)
	}
}

// TestCloseReleasesSubscriptions verifies that no callback outlives Close.
func TestCloseReleasesSubscriptions(t *testing.T) {
	ctrl, engine := newFakeController(t)

	var candidates, tracks int
	ctrl.OnICECandidate(func(peer.ICECandidate) { candidates++ })
	ctrl.OnTrack(func(peer.Track) { tracks++ })

	engine.EmitTrack(peer.Track{ID: "t1", StreamID: "s1", Kind: "video"})
	if tracks != 1 {
		t.Fatalf("tracks = %d before Close, want 1", tracks)
	}

	if err := ctrl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !engine.Closed() {
		t.Error("engine not closed")
	}

	engine.EmitCandidate(peer.ICECandidate{Candidate: "late"})
	engine.EmitTrack(peer.Track{ID: "t2"})
	ctrl.OnTrack(func(peer.Track) { tracks++ })
	engine.EmitTrack(peer.Track{ID: "t3"})

	if candidates != 0 || tracks != 1 {
		t.Errorf("callbacks after Close: candidates=%d tracks=%d", candidates, tracks)
	}
}

func TestConnectionStateRecorded(t *testing.T) {
	ctrl, engine := newFakeController(t)

	if got := ctrl.ConnectionState(); got != peer.ConnectionStateNew {
		t.Errorf("initial state = %s, want new", got)
	}
	engine.EmitState("connected")
	if got := ctrl.ConnectionState(); got != "connected" {
		t.Errorf("state = %s, want connected", got)
	}
}

// TestStateChangesLoggedAtDebug verifies that signaling and ICE state changes
// are recorded and logged through the "peer" scope at debug level.
func TestStateChangesLoggedAtDebug(t *testing.T) {
	var buf bytes.Buffer
	lf := logging.NewDefaultLoggerFactory()
	lf.Writer = &buf
	lf.DefaultLogLevel = logging.LogLevelDebug

	engine := peertest.NewEngine()
	ctrl := peer.NewController(engine, lf)
	defer ctrl.Close()

	if got := ctrl.SignalingState(); got != "" {
		t.Errorf("initial signaling state = %q, want empty", got)
	}

	offer, err := ctrl.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	if _, err := ctrl.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription failed: %v", err)
	}
	engine.EmitICEState("checking")

	if got := ctrl.SignalingState(); got != "have-local-offer" {
		t.Errorf("signaling state = %q, want have-local-offer", got)
	}
	if got := ctrl.ICEConnectionState(); got != "checking" {
		t.Errorf("ICE state = %q, want checking", got)
	}

	out := buf.String()
	for _, want := range []string{
		"peer DEBUG",
		"signaling state: have-local-offer",
		"ICE connection state: checking",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
