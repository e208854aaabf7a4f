package negotiation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/1ureka/rtcsignal/internal/peer"
)

// ErrMalformedMessage is returned by Decode for payloads that are not JSON or
// that are missing a field the negotiation schema requires.
var ErrMalformedMessage = errors.New("negotiation: malformed message")

// Wire values of the "type" field.
const (
	wireOffer     = "offer"
	wireAnswer    = "answer"
	wireCandidate = "icecandidate"
)

// Kind identifies the variant of a Message.
type Kind int

const (
	KindOpaque    Kind = iota // not a negotiation message; Raw holds the payload verbatim
	KindOffer                 // Description holds the offer
	KindAnswer                // Description holds the answer
	KindCandidate             // Candidate holds the remote candidate
	KindUnknown               // well-formed but unrecognised type; Raw holds the type
)

func (k Kind) String() string {
	switch k {
	case KindOpaque:
		return "opaque"
	case KindOffer:
		return wireOffer
	case KindAnswer:
		return wireAnswer
	case KindCandidate:
		return wireCandidate
	case KindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Message is one signaling message.
type Message struct {
	Kind        Kind
	Description peer.SessionDescription
	Candidate   peer.ICECandidate
	Raw         string
}

// OfferMessage wraps a committed offer.
func OfferMessage(desc peer.SessionDescription) Message {
	return Message{Kind: KindOffer, Description: desc}
}

// AnswerMessage wraps a committed answer.
func AnswerMessage(desc peer.SessionDescription) Message {
	return Message{Kind: KindAnswer, Description: desc}
}

// CandidateMessage wraps a local ICE candidate.
func CandidateMessage(c peer.ICECandidate) Message {
	return Message{Kind: KindCandidate, Candidate: c}
}

// inbound mirrors the wire schema with pointers so that missing fields can be
// told apart from empty ones.
type inbound struct {
	Type      *string           `json:"type"`
	SDP       *string           `json:"sdp"`
	Candidate *inboundCandidate `json:"candidate"`
}

type inboundCandidate struct {
	Candidate     *string `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

type outboundDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type outboundCandidate struct {
	Type      string           `json:"type"`
	Candidate candidatePayload `json:"candidate"`
}

type candidatePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

// Decode parses a wire payload.
//
// A payload that is not a JSON object, has no "type", or lacks a field its
// type requires yields an opaque Message carrying the payload verbatim
// together with an error wrapping ErrMalformedMessage. An unrecognised type
// yields KindUnknown and no error.
func Decode(payload string) (Message, error) {
	opaque := Message{Kind: KindOpaque, Raw: payload}

	var in inbound
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return opaque, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if in.Type == nil {
		return opaque, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	switch *in.Type {
	case wireOffer, wireAnswer:
		if in.SDP == nil {
			return opaque, fmt.Errorf("%w: %s without sdp", ErrMalformedMessage, *in.Type)
		}
		kind, sdpType := KindOffer, peer.SDPTypeOffer
		if *in.Type == wireAnswer {
			kind, sdpType = KindAnswer, peer.SDPTypeAnswer
		}
		return Message{
			Kind:        kind,
			Description: peer.SessionDescription{Type: sdpType, SDP: *in.SDP},
		}, nil

	case wireCandidate:
		if in.Candidate == nil || in.Candidate.Candidate == nil {
			return opaque, fmt.Errorf("%w: icecandidate without candidate", ErrMalformedMessage)
		}
		return Message{
			Kind: KindCandidate,
			Candidate: peer.ICECandidate{
				Candidate:     *in.Candidate.Candidate,
				SDPMid:        in.Candidate.SDPMid,
				SDPMLineIndex: in.Candidate.SDPMLineIndex,
			},
		}, nil

	default:
		return Message{Kind: KindUnknown, Raw: *in.Type}, nil
	}
}

// Encode renders a negotiation message in wire form. Absent candidate fields
// are written as null. Opaque messages are returned verbatim.
func Encode(m Message) (string, error) {
	var v any
	switch m.Kind {
	case KindOffer:
		v = outboundDescription{Type: wireOffer, SDP: m.Description.SDP}
	case KindAnswer:
		v = outboundDescription{Type: wireAnswer, SDP: m.Description.SDP}
	case KindCandidate:
		v = outboundCandidate{
			Type: wireCandidate,
			Candidate: candidatePayload{
				Candidate:     m.Candidate.Candidate,
				SDPMid:        m.Candidate.SDPMid,
				SDPMLineIndex: m.Candidate.SDPMLineIndex,
			},
		}
	case KindOpaque:
		return m.Raw, nil
	default:
		return "", fmt.Errorf("cannot encode %s message", m.Kind)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
