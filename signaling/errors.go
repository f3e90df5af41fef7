package signaling

import (
	"errors"
	"fmt"
)

// Connection errors.
var (
	// ErrConnectionLost indicates the server connection failed to open or
	// closed unexpectedly. It drives the reconnect loop.
	ErrConnectionLost = errors.New("connection to signaling server lost")

	// ErrNotConnected indicates a send while not connected.
	ErrNotConnected = fmt.Errorf("not connected: %w", ErrConnectionLost)
)

// Frame errors.
var (
	// ErrMalformedFrame indicates an inbound frame that is neither a roster
	// snapshot nor a known signaling message.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Construction errors.
var (
	// ErrEmptyURL indicates a manager without a server URL.
	ErrEmptyURL = errors.New("server URL cannot be empty")

	// ErrNilDialer indicates a manager without a dialer.
	ErrNilDialer = errors.New("dialer cannot be nil")

	// ErrNilPost indicates a manager without an event loop hook.
	ErrNilPost = errors.New("post function cannot be nil")

	// ErrInvalidDelay indicates a non-positive reconnect delay.
	ErrInvalidDelay = errors.New("reconnect delay must be positive")
)
