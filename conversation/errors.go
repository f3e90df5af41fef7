package conversation

import "errors"

// Append validation errors. Body length errors come from the limits package
// (limits.ErrMessageEmpty, limits.ErrMessageTooLarge).
var (
	// ErrEmptyPeer indicates an operation without a peer identity.
	ErrEmptyPeer = errors.New("peer identity cannot be empty")

	// ErrEmptySender indicates a message without a sender.
	ErrEmptySender = errors.New("sender cannot be empty")

	// ErrUnencodable indicates the sender or body contains a line break or
	// the field delimiter and cannot be stored in the history file.
	ErrUnencodable = errors.New("message cannot be encoded in history file")
)

// Storage errors.
var (
	// ErrPersistence wraps any failure to read or write history. It is never
	// returned from Append or Load; it is reported through the warning
	// callback and the in-memory record carries on.
	ErrPersistence = errors.New("conversation persistence failure")

	// ErrSealedFormat indicates a sealed history file is truncated, has an
	// unknown version, or fails authentication.
	ErrSealedFormat = errors.New("invalid sealed history file")

	// ErrNilBackend indicates the store was built without a backend.
	ErrNilBackend = errors.New("backend cannot be nil")
)
