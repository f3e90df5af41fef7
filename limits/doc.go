// Package limits provides centralized size constants and validation functions
// for the softphone client.
//
// # Limits
//
//   - MaxMessageLength (1000 units): the longest chat body a user may
//     send or store. Length is counted in UTF-16 code units (see
//     MessageLength), so multi-byte text is not penalised but emoji outside
//     the Basic Multilingual Plane count as two.
//
//   - MaxHistory (1000 messages): the per-peer conversation cap. The
//     conversation store evicts the oldest message when appending at the cap.
//
//   - MaxFrameSize (1MB): the largest signaling frame the transport will
//     read. Larger frames are treated as a broken connection.
//
//   - SealNonceSize / SealOverhead: framing of sealed (encrypted) history
//     files, matching golang.org/x/crypto/nacl/secretbox.
//
// # Validation Functions
//
//	if err := limits.ValidateMessage(body); err != nil {
//	    // ErrMessageEmpty or ErrMessageTooLarge
//	}
package limits
