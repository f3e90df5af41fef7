// Package conversation keeps the bounded chat history with each peer.
//
// A Store holds at most limits.MaxHistory messages per peer, evicting the
// oldest first. Every change rewrites the peer's history through a Backend;
// FileBackend stores one "sender|||body" line per message in
// <dir>/<peer>_chat.txt. A Store reads storage at most once per peer, on
// the first Load or Append.
//
//	backend, err := conversation.NewFileBackend(dir)
//	if err != nil {
//	    return err
//	}
//	store, _ := conversation.NewStore(backend)
//	rec, err := store.Append("bob", "Me", "hi")
//
// Optional at-rest encryption wraps each file with NaCl secretbox under a
// PBKDF2 key derived from a passphrase:
//
//	sealer, err := conversation.NewSecretboxSealer([]byte(passphrase), dir)
//	store.SetSealer(sealer)
//
// Storage failures never fail an append. They are logged and reported once
// through OnWarning, and the in-memory record carries on.
package conversation
