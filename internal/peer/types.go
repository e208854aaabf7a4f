// Package peer wraps one peer-connection engine behind a Controller that
// exposes the description/candidate operations needed for negotiation and
// emits locally discovered ICE candidates and remote tracks.
package peer

import "errors"

var (
	// ErrDescriptionRejected is returned when the engine refuses a session
	// description: malformed SDP or a signaling-state mismatch.
	ErrDescriptionRejected = errors.New("peer: description rejected")

	// ErrCandidateRejected is returned when the engine refuses a remote ICE
	// candidate.
	ErrCandidateRejected = errors.New("peer: candidate rejected")
)

// SDPType is the kind of a session description.
type SDPType string

const (
	SDPTypeOffer  SDPType = "offer"
	SDPTypeAnswer SDPType = "answer"
)

// SessionDescription is an immutable offer or answer produced by the engine.
type SessionDescription struct {
	Type SDPType
	SDP  string
}

// ICECandidate is a trickled candidate. SDPMid and SDPMLineIndex are nil when
// absent.
type ICECandidate struct {
	Candidate     string
	SDPMid        *string
	SDPMLineIndex *uint16
}

// Track describes a remote media track reported by the engine.
type Track struct {
	ID       string
	StreamID string
	Kind     string // "audio" or "video"
}

// ConnectionState mirrors the engine's aggregate connection state
// ("new", "connecting", "connected", "disconnected", "failed", "closed").
type ConnectionState string

const ConnectionStateNew ConnectionState = "new"

// SignalingState mirrors the engine's signaling state ("stable",
// "have-local-offer", "have-remote-offer", ...).
type SignalingState string

// ICEConnectionState mirrors the engine's ICE transport state ("new",
// "checking", "connected", ...).
type ICEConnectionState string
