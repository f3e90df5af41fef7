// Package softphone implements the client core of a softphone: sign-in, a
// roster of peers with presence, one voice call at a time (including ad-hoc
// conferences) and per-peer text chat, all coordinated through a central
// signaling server.
//
// A [Client] owns the four parts of the core and runs them on a single
// event loop:
//
//   - roster: the peer list, replaced wholesale by every server push
//   - call: the call session state machine
//   - conversation: bounded chat history per peer, persisted to disk
//   - signaling: the server connection with a fixed-delay reconnect
//
// # Getting Started
//
//	options := softphone.NewOptions()
//	options.DataDir = "/var/lib/softphone"
//
//	client, err := softphone.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Kill()
//
//	client.OnRosterChange(func(snap roster.Snapshot) {
//	    for _, e := range snap.Entries() {
//	        fmt.Println(e.ID, e.Presence)
//	    }
//	})
//	client.OnCallState(func(info call.Info) {
//	    fmt.Println("call:", info.State, info.Peer)
//	})
//	client.OnMessage(func(peer roster.PeerID, msg conversation.Message) {
//	    fmt.Printf("%s: %s\n", msg.Sender, msg.Body)
//	})
//
//	err = client.SignIn(softphone.Credentials{
//	    Username:      "alice",
//	    Password:      "secret",
//	    ServerAddress: "192.168.1.10",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for client.IsRunning() {
//	    client.Iterate()
//	    time.Sleep(client.IterationInterval())
//	}
//
// Run(ctx) is an alternative to the Iterate loop that blocks until the
// context is cancelled.
//
// # Threading
//
// Every Client method except Post must be called from the loop goroutine,
// and every callback runs there. Connection dials, frame reads and the
// reconnect timer run elsewhere and hand their results to the loop through
// Post. The roster snapshot is the one value safe to read from any
// goroutine.
//
// # Configuration
//
// [Options] can be built in code or loaded from a YAML or TOML file with
// [LoadOptions]. ${VAR} references in the file are expanded from the
// environment:
//
//	server_url: ws://localhost:12345
//	data_dir: ${HOME}/.softphone
//	reconnect_delay: 5s
//	history_passphrase: ${SOFTPHONE_PASSPHRASE}
//	log_level: info
//	log_format: json
//
// # Errors
//
// Intents return sentinel errors from the component packages, for example
// call.ErrInvalidPeer, call.ErrInsufficientParticipants and
// call.ErrInvalidTransition, all classifiable with errors.Is. Failures to
// save history never fail a send; they are reported once through
// OnWarning.
package softphone
