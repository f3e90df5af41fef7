// Package roster maintains the list of known peers and their presence.
//
// The server always pushes the whole list, so Model has a single mutator,
// Replace, which swaps in a new immutable Snapshot:
//
//	m := roster.NewModel()
//	m.Replace([]roster.Entry{
//	    {ID: "alice", Presence: roster.PresenceOnline},
//	    {ID: "bob", Presence: roster.PresenceBusy},
//	})
//
//	snap := m.Snapshot()
//	for i := 0; i < snap.Len(); i++ {
//	    e := snap.At(i)
//	    fmt.Println(e.ID, e.Presence, e.Presence.Color())
//	}
//
// A snapshot obtained before a Replace keeps describing the old list, so a
// renderer iterating it is never disturbed by a concurrent push.
//
// # Actions
//
// UI actions must not hold on to an Entry. Bind captures the identity only
// and resolves it again when the action fires:
//
//	callAction := m.Bind("alice", func(e roster.Entry) {
//	    client.Call(e.ID)
//	})
//	if !callAction() {
//	    // alice left the roster since the button was drawn
//	}
//
// # Thread Safety
//
// Replace and OnChange belong to the client event loop. Snapshot, Find and
// Contains read an atomically published pointer and may be called from any
// goroutine.
package roster
