// Package limits provides centralized size limits for the softphone client.
// This ensures consistent validation across the conversation store, the
// signaling codec and the transport.
package limits

import (
	"errors"
	"fmt"
	"unicode/utf16"
)

const (
	// MaxMessageLength is the longest chat message body accepted, counted in
	// UTF-16 code units, not bytes. Characters outside the Basic Multilingual
	// Plane count twice.
	MaxMessageLength = 1000

	// MaxHistory is the number of messages retained per peer conversation.
	// Older messages are evicted first once the cap is reached.
	MaxHistory = 1000

	// MaxFrameSize bounds a single signaling frame read from the server.
	// A full roster push is the largest frame the client expects.
	MaxFrameSize = 1024 * 1024

	// SealNonceSize is the nonce prepended to a sealed history file.
	SealNonceSize = 24

	// SealOverhead is the authentication tag added when a history file is
	// sealed (golang.org/x/crypto/nacl/secretbox.Overhead).
	SealOverhead = 16
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")
)

// ValidateMessage validates a chat message body against MaxMessageLength.
// Returns an error with context including the actual and maximum lengths.
func ValidateMessage(body string) error {
	if len(body) == 0 {
		return ErrMessageEmpty
	}
	if n := MessageLength(body); n > MaxMessageLength {
		return fmt.Errorf("%w: length %d exceeds limit %d", ErrMessageTooLarge, n, MaxMessageLength)
	}
	return nil
}

// MessageLength returns the length of body in UTF-16 code units.
func MessageLength(body string) int {
	n := 0
	for _, r := range body {
		n += utf16.RuneLen(r)
	}
	return n
}

// ValidateFrame validates a raw signaling frame against MaxFrameSize.
func ValidateFrame(frame []byte) error {
	if len(frame) == 0 {
		return ErrMessageEmpty
	}
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: frame size %d exceeds limit %d", ErrMessageTooLarge, len(frame), MaxFrameSize)
	}
	return nil
}
