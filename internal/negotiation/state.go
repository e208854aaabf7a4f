package negotiation

import "fmt"

// State is the negotiation state of one connection.
type State int

const (
	StateIdle State = iota
	// local offer committed and sent, waiting for the answer
	StateHaveLocalOffer
	// remote offer applied, answer not yet committed
	StateHaveRemoteOffer
	StateStable
	// terminal
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateHaveLocalOffer:
		return "HAVE_LOCAL_OFFER"
	case StateHaveRemoteOffer:
		return "HAVE_REMOTE_OFFER"
	case StateStable:
		return "STABLE"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

// canStartRound reports whether a new offer/answer round may begin.
func (s State) canStartRound() bool {
	return s == StateIdle || s == StateStable
}
