package roster

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// PeerID is the opaque, immutable identity of a peer (its username).
type PeerID string

// Entry is one roster row. Entries are values: the model never mutates an
// entry after it has been published in a snapshot.
type Entry struct {
	ID       PeerID
	Presence Presence
}

// Snapshot is an immutable view of the roster at one point in time. A
// snapshot stays valid after the model has moved on to a newer one.
type Snapshot struct {
	s *snapshot
}

type snapshot struct {
	entries []Entry
	index   map[PeerID]int
	version uint64
}

var emptySnapshot = &snapshot{index: map[PeerID]int{}}

// Len returns the number of entries.
func (s Snapshot) Len() int {
	if s.s == nil {
		return 0
	}
	return len(s.s.entries)
}

// At returns the i-th entry in server order.
func (s Snapshot) At(i int) Entry {
	return s.s.entries[i]
}

// Entries returns a copy of the entries in server order.
func (s Snapshot) Entries() []Entry {
	if s.s == nil {
		return nil
	}
	out := make([]Entry, len(s.s.entries))
	copy(out, s.s.entries)
	return out
}

// Find returns the entry with the given identity. When the server sent a
// duplicate identity, the first occurrence wins.
func (s Snapshot) Find(id PeerID) (Entry, bool) {
	if s.s == nil {
		return Entry{}, false
	}
	i, ok := s.s.index[id]
	if !ok {
		return Entry{}, false
	}
	return s.s.entries[i], true
}

// Version increases by one with every Replace.
func (s Snapshot) Version() uint64 {
	if s.s == nil {
		return 0
	}
	return s.s.version
}

// ChangeCallback is invoked after every Replace with the new snapshot.
type ChangeCallback func(snapshot Snapshot)

// Model holds the peer table. Replace is the only mutator; the current
// snapshot is swapped atomically so readers never observe a partial update.
//
// Replace and OnChange must be called from the client event loop. Snapshot
// and Find are safe from any goroutine.
type Model struct {
	current  atomic.Pointer[snapshot]
	onChange ChangeCallback
}

// NewModel creates an empty roster.
func NewModel() *Model {
	m := &Model{}
	m.current.Store(emptySnapshot)
	return m
}

// OnChange sets the callback invoked after every Replace.
func (m *Model) OnChange(callback ChangeCallback) {
	m.onChange = callback
}

// Replace substitutes the full entry set. The incoming slice is copied, so
// the caller may reuse it.
func (m *Model) Replace(entries []Entry) Snapshot {
	prev := m.current.Load()

	next := &snapshot{
		entries: make([]Entry, len(entries)),
		index:   make(map[PeerID]int, len(entries)),
		version: prev.version + 1,
	}
	copy(next.entries, entries)
	for i, e := range next.entries {
		if _, dup := next.index[e.ID]; dup {
			logrus.WithFields(logrus.Fields{
				"function": "Replace",
				"peer":     e.ID,
				"position": i,
			}).Warn("Duplicate peer in roster snapshot, first occurrence wins")
			continue
		}
		next.index[e.ID] = i
	}
	m.current.Store(next)

	logrus.WithFields(logrus.Fields{
		"function":     "Replace",
		"version":      next.version,
		"entry_count":  len(next.entries),
		"previous_len": len(prev.entries),
	}).Debug("Roster snapshot replaced")

	snap := Snapshot{s: next}
	if m.onChange != nil {
		m.onChange(snap)
	}
	return snap
}

// Clear replaces the roster with an empty snapshot.
func (m *Model) Clear() Snapshot {
	return m.Replace(nil)
}

// Snapshot returns the current snapshot.
func (m *Model) Snapshot() Snapshot {
	return Snapshot{s: m.current.Load()}
}

// Find resolves an identity against the current snapshot.
func (m *Model) Find(id PeerID) (Entry, bool) {
	return m.Snapshot().Find(id)
}

// Contains reports whether the identity is in the current snapshot.
func (m *Model) Contains(id PeerID) bool {
	_, ok := m.Find(id)
	return ok
}

// Bind returns an action for a UI element showing the peer id. The action
// re-resolves the peer when invoked and calls fn with the entry as it is
// now; it returns false without calling fn when the peer has left the
// roster.
func (m *Model) Bind(id PeerID, fn func(Entry)) func() bool {
	return func() bool {
		entry, ok := m.Find(id)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"function": "Bind",
				"peer":     id,
			}).Debug("Bound peer no longer in roster")
			return false
		}
		fn(entry)
		return true
	}
}
