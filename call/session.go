package call

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/softphone/roster"
)

// Session is the single call state machine of a client process.
//
// Local intents (Dial, StartConference, Accept, Reject, Cancel, Hangup) and
// remote events (RemoteIncoming, RemoteAccepted, RemoteRejected,
// RemoteEnded) drive the transitions. Events that are not valid in the
// current state change nothing and return ErrInvalidTransition.
//
// Session is not safe for concurrent use; it belongs to the client event
// loop.
type Session struct {
	info Info

	directory Directory
	signaler  Signaler

	stateCallback StateCallback
	timeProvider  TimeProvider
	newCallID     func() string
}

// NewSession creates a call session in StateIdle.
//
// Parameters:
//   - directory: used to check that dialed peers exist in the roster
//   - signaler: delivers call-control messages to the server
func NewSession(directory Directory, signaler Signaler) (*Session, error) {
	if directory == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewSession",
			"error":    ErrNilDirectory.Error(),
		}).Error("Directory validation failed")
		return nil, ErrNilDirectory
	}
	if signaler == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewSession",
			"error":    ErrNilSignaler.Error(),
		}).Error("Signaler validation failed")
		return nil, ErrNilSignaler
	}

	return &Session{
		info:         Info{State: StateIdle},
		directory:    directory,
		signaler:     signaler,
		timeProvider: DefaultTimeProvider{},
		newCallID:    func() string { return uuid.NewString() },
	}, nil
}

// OnStateChange sets the callback invoked after every transition.
func (s *Session) OnStateChange(callback StateCallback) {
	s.stateCallback = callback
}

// SetTimeProvider sets the time provider used for StartedAt.
// If tp is nil the system clock is used.
func (s *Session) SetTimeProvider(tp TimeProvider) {
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	s.timeProvider = tp
}

// Info returns a copy of the current session.
func (s *Session) Info() Info {
	return s.info.clone()
}

// State returns the current state.
func (s *Session) State() State {
	return s.info.State
}

// Dial starts an outgoing call to peer. Outside StateIdle it returns
// ErrInvalidTransition whatever the peer.
func (s *Session) Dial(peer roster.PeerID) error {
	if s.info.State != StateIdle {
		return s.invalid("Dial", peer)
	}
	if peer == "" || !s.directory.Contains(peer) {
		logrus.WithFields(logrus.Fields{
			"function": "Dial",
			"peer":     peer,
		}).Warn("Rejected dial to unknown peer")
		return fmt.Errorf("dial %q: %w", peer, ErrInvalidPeer)
	}

	callID := s.newCallID()
	if err := s.signaler.SendSignal(Signal{Kind: SignalCall, CallID: callID, To: peer}); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Dial",
			"peer":     peer,
			"call_id":  callID,
			"error":    err.Error(),
		}).Error("Failed to send call request")
		return fmt.Errorf("dial %q: %w", peer, err)
	}

	s.transition("Dial", Info{State: StateOutgoing, CallID: callID, Peer: peer})
	return nil
}

// StartConference starts a conference with the given participants.
// Duplicates and empty identities are ignored; at least two distinct
// participants are required. Outside StateIdle the state check wins over
// participant validation.
func (s *Session) StartConference(participants []roster.PeerID) error {
	if s.info.State != StateIdle {
		return s.invalid("StartConference", "")
	}

	members := make([]roster.PeerID, 0, len(participants))
	seen := make(map[roster.PeerID]struct{}, len(participants))
	for _, p := range participants {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		members = append(members, p)
	}

	if len(members) < 2 {
		logrus.WithFields(logrus.Fields{
			"function":          "StartConference",
			"participant_count": len(members),
		}).Warn("Rejected conference with too few participants")
		return fmt.Errorf("start conference with %d participants: %w", len(members), ErrInsufficientParticipants)
	}
	for _, p := range members {
		if !s.directory.Contains(p) {
			return fmt.Errorf("start conference with %q: %w", p, ErrInvalidPeer)
		}
	}
	callID := s.newCallID()
	sig := Signal{Kind: SignalConference, CallID: callID, Participants: members}
	if err := s.signaler.SendSignal(sig); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "StartConference",
			"call_id":  callID,
			"error":    err.Error(),
		}).Error("Failed to send conference request")
		return fmt.Errorf("start conference: %w", err)
	}

	s.transition("StartConference", Info{
		State:        StateActive,
		CallID:       callID,
		Participants: members,
		StartedAt:    s.timeProvider.Now(),
	})
	return nil
}

// Accept answers the ringing incoming call.
func (s *Session) Accept() error {
	if s.info.State != StateIncoming {
		return s.invalid("Accept", s.info.Peer)
	}
	s.send("Accept", Signal{Kind: SignalAccept, CallID: s.info.CallID, To: s.info.Peer})
	s.transition("Accept", Info{
		State:     StateActive,
		CallID:    s.info.CallID,
		Peer:      s.info.Peer,
		StartedAt: s.timeProvider.Now(),
	})
	return nil
}

// Reject declines the ringing incoming call.
func (s *Session) Reject() error {
	if s.info.State != StateIncoming {
		return s.invalid("Reject", s.info.Peer)
	}
	s.send("Reject", Signal{Kind: SignalReject, CallID: s.info.CallID, To: s.info.Peer})
	s.transition("Reject", Info{State: StateIdle})
	return nil
}

// Cancel withdraws the outgoing call before it is answered.
func (s *Session) Cancel() error {
	if s.info.State != StateOutgoing {
		return s.invalid("Cancel", s.info.Peer)
	}
	s.send("Cancel", Signal{Kind: SignalCancel, CallID: s.info.CallID, To: s.info.Peer})
	s.transition("Cancel", Info{State: StateIdle})
	return nil
}

// Hangup ends the active call or leaves the active conference.
func (s *Session) Hangup() error {
	if s.info.State != StateActive {
		return s.invalid("Hangup", s.info.Peer)
	}
	s.send("Hangup", Signal{
		Kind:         SignalEnd,
		CallID:       s.info.CallID,
		To:           s.info.Peer,
		Participants: s.Info().Participants,
	})
	s.transition("Hangup", Info{State: StateIdle})
	return nil
}

// RemoteIncoming handles a call offer from peer. While another call is in
// progress the offer is answered with a busy signal and ErrSessionBusy is
// returned. An empty callID is replaced by a generated one.
func (s *Session) RemoteIncoming(peer roster.PeerID, callID string) error {
	if peer == "" {
		return fmt.Errorf("incoming call: %w", ErrInvalidPeer)
	}
	if s.info.State != StateIdle {
		logrus.WithFields(logrus.Fields{
			"function":      "RemoteIncoming",
			"peer":          peer,
			"call_id":       callID,
			"current_state": s.info.State.String(),
		}).Warn("Incoming call while busy")
		s.send("RemoteIncoming", Signal{Kind: SignalBusy, CallID: callID, To: peer})
		return fmt.Errorf("incoming call from %q: %w", peer, ErrSessionBusy)
	}
	if callID == "" {
		callID = s.newCallID()
	}
	s.transition("RemoteIncoming", Info{State: StateIncoming, CallID: callID, Peer: peer})
	return nil
}

// RemoteAccepted handles the callee answering our outgoing call.
func (s *Session) RemoteAccepted(peer roster.PeerID, callID string) error {
	if s.info.State != StateOutgoing || !s.matches(peer, callID) {
		return s.invalid("RemoteAccepted", peer)
	}
	s.transition("RemoteAccepted", Info{
		State:     StateActive,
		CallID:    s.info.CallID,
		Peer:      s.info.Peer,
		StartedAt: s.timeProvider.Now(),
	})
	return nil
}

// RemoteRejected handles the callee declining our outgoing call.
func (s *Session) RemoteRejected(peer roster.PeerID, callID string) error {
	if s.info.State != StateOutgoing || !s.matches(peer, callID) {
		return s.invalid("RemoteRejected", peer)
	}
	s.transition("RemoteRejected", Info{State: StateIdle})
	return nil
}

// RemoteEnded handles a remote hangup. In a conference the peer leaves and
// the conference ends once no participant remains.
func (s *Session) RemoteEnded(peer roster.PeerID, callID string) error {
	if s.info.State != StateActive {
		return s.invalid("RemoteEnded", peer)
	}
	if callID != "" && callID != s.info.CallID {
		return s.invalid("RemoteEnded", peer)
	}

	if !s.info.IsConference() {
		if peer != s.info.Peer {
			return s.invalid("RemoteEnded", peer)
		}
		s.transition("RemoteEnded", Info{State: StateIdle})
		return nil
	}

	if !s.info.HasParticipant(peer) {
		return s.invalid("RemoteEnded", peer)
	}
	remaining := make([]roster.PeerID, 0, len(s.info.Participants)-1)
	for _, p := range s.info.Participants {
		if p != peer {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == 0 {
		s.transition("RemoteEnded", Info{State: StateIdle})
		return nil
	}

	next := s.info.clone()
	next.Participants = remaining
	s.transition("RemoteEnded", next)
	return nil
}

// Reset drops the session to StateIdle without signaling. Used on logout
// and when the signaling connection is lost.
func (s *Session) Reset() {
	if s.info.State == StateIdle {
		return
	}
	s.transition("Reset", Info{State: StateIdle})
}

func (s *Session) matches(peer roster.PeerID, callID string) bool {
	if peer != s.info.Peer {
		return false
	}
	return callID == "" || callID == s.info.CallID
}

func (s *Session) send(function string, sig Signal) {
	if err := s.signaler.SendSignal(sig); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": function,
			"signal":   sig.Kind.String(),
			"call_id":  sig.CallID,
			"peer":     sig.To,
			"error":    err.Error(),
		}).Warn("Failed to deliver call signal")
	}
}

func (s *Session) invalid(function string, peer roster.PeerID) error {
	logrus.WithFields(logrus.Fields{
		"function":      function,
		"peer":          peer,
		"current_state": s.info.State.String(),
	}).Debug("Ignoring event not valid in current state")
	return fmt.Errorf("%s in state %s: %w", function, s.info.State, ErrInvalidTransition)
}

func (s *Session) transition(function string, next Info) {
	prev := s.info.State
	s.info = next

	logrus.WithFields(logrus.Fields{
		"function":     function,
		"from_state":   prev.String(),
		"to_state":     next.State.String(),
		"call_id":      next.CallID,
		"peer":         next.Peer,
		"participants": len(next.Participants),
	}).Info("Call state changed")

	if s.stateCallback != nil {
		s.stateCallback(s.Info())
	}
}
