package negotiation

import (
	"errors"
	"testing"

	"github.com/1ureka/rtcsignal/internal/peer"
)

func TestDecode(t *testing.T) {
	mid := "0"
	var idx uint16 = 1

	testCases := []struct {
		name    string
		payload string
		want    Message
	}{
		{
			name:    "offer",
			payload: `{"type":"offer","sdp":"v=0"}`,
			want:    Message{Kind: KindOffer, Description: peer.SessionDescription{Type: peer.SDPTypeOffer, SDP: "v=0"}},
		},
		{
			name:    "answer with empty sdp",
			payload: `{"type":"answer","sdp":""}`,
			want:    Message{Kind: KindAnswer, Description: peer.SessionDescription{Type: peer.SDPTypeAnswer}},
		},
		{
			name:    "candidate with every field",
			payload: `{"type":"icecandidate","candidate":{"candidate":"c1","sdpMid":"0","sdpMLineIndex":1}}`,
			want:    Message{Kind: KindCandidate, Candidate: peer.ICECandidate{Candidate: "c1", SDPMid: &mid, SDPMLineIndex: &idx}},
		},
		{
			name:    "candidate with null fields",
			payload: `{"type":"icecandidate","candidate":{"candidate":"c2","sdpMid":null,"sdpMLineIndex":null}}`,
			want:    Message{Kind: KindCandidate, Candidate: peer.ICECandidate{Candidate: "c2"}},
		},
		{
			name:    "unknown type",
			payload: `{"type":"bye"}`,
			want:    Message{Kind: KindUnknown, Raw: "bye"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.payload)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got.Kind != tc.want.Kind || got.Raw != tc.want.Raw || got.Description != tc.want.Description {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			if !sameCandidate(got.Candidate, tc.want.Candidate) {
				t.Errorf("candidate = %+v, want %+v", got.Candidate, tc.want.Candidate)
			}
		})
	}
}

func TestDecodeMalformedPassesThrough(t *testing.T) {
	payloads := []string{
		"hello there",
		"",
		`{"sdp":"v=0"}`,
		`{"type":"offer"}`,
		`{"type":"answer","sdp":null}`,
		`{"type":"icecandidate"}`,
		`{"type":"icecandidate","candidate":{"sdpMid":"0"}}`,
		`{"type":"icecandidate","candidate":"candidate:1 1 udp 1 10.0.0.1 9 typ host"}`,
		`{"type":"icecandidate","candidate":{"candidate":"c","sdpMLineIndex":70000}}`,
		`{"type":7}`,
		`[1,2,3]`,
	}

	for _, p := range payloads {
		got, err := Decode(p)
		if !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("Decode(%q) error = %v, want ErrMalformedMessage", p, err)
			continue
		}
		if got.Kind != KindOpaque || got.Raw != p {
			t.Errorf("Decode(%q) = %+v, want verbatim opaque", p, got)
		}
	}
}

func TestEncode(t *testing.T) {
	mid := "audio"
	var idx uint16 = 0

	testCases := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "offer",
			msg:  OfferMessage(peer.SessionDescription{Type: peer.SDPTypeOffer, SDP: "v=0"}),
			want: `{"type":"offer","sdp":"v=0"}`,
		},
		{
			name: "answer",
			msg:  AnswerMessage(peer.SessionDescription{Type: peer.SDPTypeAnswer, SDP: "v=0"}),
			want: `{"type":"answer","sdp":"v=0"}`,
		},
		{
			name: "candidate keeps absent fields null",
			msg:  CandidateMessage(peer.ICECandidate{Candidate: "c"}),
			want: `{"type":"icecandidate","candidate":{"candidate":"c","sdpMid":null,"sdpMLineIndex":null}}`,
		},
		{
			name: "candidate with zero index",
			msg:  CandidateMessage(peer.ICECandidate{Candidate: "c", SDPMid: &mid, SDPMLineIndex: &idx}),
			want: `{"type":"icecandidate","candidate":{"candidate":"c","sdpMid":"audio","sdpMLineIndex":0}}`,
		},
		{
			name: "opaque is verbatim",
			msg:  Message{Kind: KindOpaque, Raw: "not { json"},
			want: "not { json",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.msg)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestEncodeUnknownFails(t *testing.T) {
	if _, err := Encode(Message{Kind: KindUnknown, Raw: "bye"}); err == nil {
		t.Fatal("expected error encoding an unknown message")
	}
}

func TestStateRounds(t *testing.T) {
	for s, want := range map[State]bool{
		StateIdle:            true,
		StateHaveLocalOffer:  false,
		StateHaveRemoteOffer: false,
		StateStable:          true,
		StateClosed:          false,
	} {
		if got := s.canStartRound(); got != want {
			t.Errorf("%s.canStartRound() = %v, want %v", s, got, want)
		}
	}
}

func sameCandidate(a, b peer.ICECandidate) bool {
	if a.Candidate != b.Candidate {
		return false
	}
	if (a.SDPMid == nil) != (b.SDPMid == nil) || (a.SDPMid != nil && *a.SDPMid != *b.SDPMid) {
		return false
	}
	if (a.SDPMLineIndex == nil) != (b.SDPMLineIndex == nil) ||
		(a.SDPMLineIndex != nil && *a.SDPMLineIndex != *b.SDPMLineIndex) {
		return false
	}
	return true
}
