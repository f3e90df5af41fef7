// Package call implements the voice call session state machine.
//
// A client process owns exactly one Session. It moves between four states:
//
//	Idle ──Dial──────────────▶ Outgoing ──RemoteAccepted──▶ Active
//	Idle ──RemoteIncoming────▶ Incoming ──Accept──────────▶ Active
//	Idle ──StartConference───▶ Active (participants)
//	Incoming ──Reject──▶ Idle      Outgoing ──Cancel / RemoteRejected──▶ Idle
//	Active ──Hangup / RemoteEnded──▶ Idle
//
// Anything else is a no-op returning ErrInvalidTransition, which callers log
// and ignore: it usually means a signaling race. An incoming call while the
// session is not Idle is answered with a busy signal and RemoteIncoming
// returns ErrSessionBusy.
//
// # Usage
//
//	session, err := call.NewSession(rosterModel, signaler)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session.OnStateChange(func(info call.Info) {
//	    fmt.Println("call state:", info.State, info.Peer)
//	})
//
//	if err := session.Dial("alice"); errors.Is(err, call.ErrInvalidPeer) {
//	    // show "unknown peer"
//	}
//
// Conferences need at least two distinct participants:
//
//	err := session.StartConference([]roster.PeerID{"alice"})
//	// errors.Is(err, call.ErrInsufficientParticipants) == true
//
// Every call carries a CallID (a UUID for calls we originate) so that late
// frames from an earlier call are not applied to the current one.
//
// # Media
//
// The session tracks signaling only. Audio capture and transport belong to
// the media subsystem, which observes state changes through OnStateChange.
package call
