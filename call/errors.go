package call

import "errors"

// Sentinel errors for call package operations.
// These errors enable reliable error classification using errors.Is().

// Intent errors, returned to the presentation layer.
var (
	// ErrInvalidPeer indicates the peer identity is empty or not in the roster.
	ErrInvalidPeer = errors.New("invalid peer")

	// ErrInsufficientParticipants indicates a conference was requested with
	// fewer than two distinct participants.
	ErrInsufficientParticipants = errors.New("conference needs at least two participants")
)

// State machine errors.
var (
	// ErrSessionBusy indicates an incoming call arrived while another call
	// is ringing, dialing or active.
	ErrSessionBusy = errors.New("call session busy")

	// ErrInvalidTransition indicates the event is not valid in the current
	// state. Callers treat it as a no-op.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Construction errors.
var (
	// ErrNilDirectory indicates the session was built without a peer directory.
	ErrNilDirectory = errors.New("peer directory cannot be nil")

	// ErrNilSignaler indicates the session was built without a signaler.
	ErrNilSignaler = errors.New("signaler cannot be nil")
)
