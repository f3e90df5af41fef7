// Package signaling manages the client's connection to the signaling
// server.
//
// A Manager dials the configured URL, reads frames on a helper goroutine
// and decodes each into a Frame: either a whole roster snapshot or a
// call/chat message from a peer. When a dial fails or the connection drops,
// the Manager reports the loss and redials exactly once after a fixed delay
// (5 seconds by default), rescheduling after each further failure until
// Disconnect is called.
//
// All Manager methods and callbacks run on the owner's event loop. The
// post function given to NewManager is how helper goroutines and the
// reconnect timer get back onto that loop:
//
//	events := make(chan func(), 64)
//	mgr, err := signaling.NewManager(signaling.Config{URL: url},
//	    signaling.NewWebSocketDialer(), func(f func()) { events <- f })
//	mgr.OnFrame(handleFrame)
//	mgr.Connect()
//	for f := range events {
//	    f()
//	}
//
// The wire format is JSON over WebSocket text messages. A roster push is an
// array of {"name", "status"} objects; every other frame is an object whose
// "type" field selects the message.
package signaling
