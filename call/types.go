package call

import (
	"time"

	"github.com/opd-ai/softphone/roster"
)

// State represents the lifecycle position of the call session.
type State uint8

const (
	// StateIdle indicates no call is ringing, dialing or active
	StateIdle State = iota
	// StateIncoming indicates a remote peer is calling us
	StateIncoming
	// StateOutgoing indicates we are calling a remote peer
	StateOutgoing
	// StateActive indicates a one-to-one call or conference is in progress
	StateActive
)

// String returns a readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateIncoming:
		return "Incoming"
	case StateOutgoing:
		return "Outgoing"
	case StateActive:
		return "Active"
	default:
		return "Invalid"
	}
}

// Info is a value copy of the session at one point in time.
type Info struct {
	State State

	// CallID correlates signaling frames belonging to the same call.
	CallID string

	// Peer is the remote party of a one-to-one call. Empty when Idle and
	// for conferences.
	Peer roster.PeerID

	// Participants lists conference members. Nil for one-to-one calls.
	Participants []roster.PeerID

	// StartedAt is when the call became Active.
	StartedAt time.Time
}

// IsConference reports whether the session is a conference call.
func (i Info) IsConference() bool {
	return len(i.Participants) > 0
}

// HasParticipant reports whether id is a member of the conference.
func (i Info) HasParticipant(id roster.PeerID) bool {
	for _, p := range i.Participants {
		if p == id {
			return true
		}
	}
	return false
}

func (i Info) clone() Info {
	if i.Participants != nil {
		p := make([]roster.PeerID, len(i.Participants))
		copy(p, i.Participants)
		i.Participants = p
	}
	return i
}

// SignalKind identifies an outbound call-control message.
type SignalKind uint8

const (
	// SignalCall asks the server to ring a peer
	SignalCall SignalKind = iota
	// SignalConference starts a conference with the listed participants
	SignalConference
	// SignalAccept answers an incoming call
	SignalAccept
	// SignalReject declines an incoming call
	SignalReject
	// SignalCancel withdraws an outgoing call before it is answered
	SignalCancel
	// SignalEnd hangs up an active call or conference
	SignalEnd
	// SignalBusy tells a caller we are already in a call
	SignalBusy
)

// String returns the wire name of the signal.
func (k SignalKind) String() string {
	switch k {
	case SignalCall:
		return "call"
	case SignalConference:
		return "conference"
	case SignalAccept:
		return "accept"
	case SignalReject:
		return "reject"
	case SignalCancel:
		return "cancel"
	case SignalEnd:
		return "end"
	case SignalBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Signal is an outbound call-control message.
type Signal struct {
	Kind         SignalKind
	CallID       string
	To           roster.PeerID
	Participants []roster.PeerID
}

// Directory answers whether a peer identity is known. *roster.Model
// satisfies it.
type Directory interface {
	Contains(id roster.PeerID) bool
}

// Signaler delivers call-control messages to the signaling server.
type Signaler interface {
	SendSignal(sig Signal) error
}

// TimeProvider abstracts time for deterministic testing.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

// Now returns the current system time.
func (DefaultTimeProvider) Now() time.Time {
	return time.Now()
}

// StateCallback is invoked after every state change with the new session info.
type StateCallback func(info Info)
