package conversation

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/softphone/limits"
	"github.com/opd-ai/softphone/roster"
)

// Message is one line of a conversation.
type Message struct {
	Sender    string
	Body      string
	Timestamp time.Time
}

// Record is the ordered history with one peer, oldest first.
type Record struct {
	Peer     roster.PeerID
	Messages []Message
}

// Len returns the number of messages in the record.
func (r Record) Len() int {
	return len(r.Messages)
}

// WarningCallback receives persistence failures.
type WarningCallback func(err error)

// TimeProvider abstracts time for stamping messages.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

type conversation struct {
	messages []Message
	// readFailed blocks writes so a history that could not be read is
	// never overwritten by the partial in-memory record.
	readFailed bool
}

// Store holds per-peer conversation records and persists each record in
// full after every change.
//
// Store is not safe for concurrent use; it belongs to the client event loop.
type Store struct {
	backend Backend
	sealer  Sealer

	conversations map[roster.PeerID]*conversation

	warningCallback WarningCallback
	warned          bool
	timeProvider    TimeProvider
}

// NewStore creates a store over backend.
func NewStore(backend Backend) (*Store, error) {
	if backend == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewStore",
			"error":    ErrNilBackend.Error(),
		}).Error("Backend validation failed")
		return nil, ErrNilBackend
	}
	return &Store{
		backend:       backend,
		conversations: make(map[roster.PeerID]*conversation),
		timeProvider:  DefaultTimeProvider{},
	}, nil
}

// SetSealer enables at-rest encryption. Must be called before the first
// Load or Append.
func (s *Store) SetSealer(sealer Sealer) {
	s.sealer = sealer
}

// OnWarning sets the callback for persistence failures. It fires at most
// once per store; later failures are only logged.
func (s *Store) OnWarning(callback WarningCallback) {
	s.warningCallback = callback
}

// SetTimeProvider sets the clock used to stamp appended messages.
func (s *Store) SetTimeProvider(tp TimeProvider) {
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	s.timeProvider = tp
}

// Load returns the record for peer, reading storage the first time the peer
// is seen. A missing or unreadable file yields an empty record.
func (s *Store) Load(peer roster.PeerID) (Record, error) {
	if peer == "" {
		return Record{}, ErrEmptyPeer
	}
	return s.snapshot(peer, s.conversation(peer)), nil
}

// Append stores a message from sender in the conversation with peer and
// persists the whole record. The oldest message is evicted once the record
// holds limits.MaxHistory messages. Persistence failures do not fail the
// append.
func (s *Store) Append(peer roster.PeerID, sender, body string) (Record, error) {
	if peer == "" {
		return Record{}, ErrEmptyPeer
	}
	if sender == "" {
		return Record{}, ErrEmptySender
	}
	if err := limits.ValidateMessage(body); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Append",
			"peer":     peer,
			"error":    err.Error(),
		}).Debug("Rejected message")
		return Record{}, err
	}
	if !encodable(sender, body) {
		return Record{}, fmt.Errorf("append to %q: %w", peer, ErrUnencodable)
	}

	c := s.conversation(peer)
	msg := Message{Sender: sender, Body: body, Timestamp: s.timeProvider.Now()}
	if len(c.messages) >= limits.MaxHistory {
		drop := len(c.messages) - limits.MaxHistory + 1
		c.messages = append(c.messages[:0], c.messages[drop:]...)
	}
	c.messages = append(c.messages, msg)

	s.persist(peer, c)
	return s.snapshot(peer, c), nil
}

// Clear empties the conversation with peer in memory and in storage.
func (s *Store) Clear(peer roster.PeerID) error {
	if peer == "" {
		return ErrEmptyPeer
	}
	s.conversations[peer] = &conversation{}
	if err := s.backend.Remove(peer); err != nil {
		s.warn("Clear", peer, err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Peers returns the peers with a conversation loaded this session, sorted.
func (s *Store) Peers() []roster.PeerID {
	peers := make([]roster.PeerID, 0, len(s.conversations))
	for p, c := range s.conversations {
		if len(c.messages) > 0 {
			peers = append(peers, p)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers
}

// Export writes the conversation with peer as human readable lines.
// Messages read back from storage carry no timestamp and are written
// without one.
func (s *Store) Export(peer roster.PeerID, w io.Writer) error {
	rec, err := s.Load(peer)
	if err != nil {
		return err
	}
	for _, m := range rec.Messages {
		var err error
		if m.Timestamp.IsZero() {
			_, err = fmt.Fprintf(w, "%s: %s\n", m.Sender, m.Body)
		} else {
			_, err = fmt.Fprintf(w, "[%s] %s: %s\n", m.Timestamp.Format("2006-01-02 15:04:05"), m.Sender, m.Body)
		}
		if err != nil {
			return fmt.Errorf("export %q: %w", peer, err)
		}
	}
	return nil
}

func (s *Store) conversation(peer roster.PeerID) *conversation {
	if c, ok := s.conversations[peer]; ok {
		return c
	}
	c := &conversation{}
	s.conversations[peer] = c

	data, err := s.backend.Read(peer)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.readFailed = true
			s.warn("Load", peer, err)
		}
		return c
	}
	if s.sealer != nil {
		data, err = s.sealer.Open(data)
		if err != nil {
			c.readFailed = true
			s.warn("Load", peer, err)
			return c
		}
	}

	messages, skipped := decodeMessages(data)
	if skipped > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"peer":     peer,
			"skipped":  skipped,
		}).Warn("Skipped malformed history lines")
	}
	if len(messages) > limits.MaxHistory {
		messages = messages[len(messages)-limits.MaxHistory:]
	}
	c.messages = messages

	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"peer":     peer,
		"messages": len(messages),
	}).Debug("Loaded conversation")
	return c
}

func (s *Store) persist(peer roster.PeerID, c *conversation) {
	if c.readFailed {
		logrus.WithFields(logrus.Fields{
			"function": "Append",
			"peer":     peer,
		}).Warn("Not overwriting history that failed to load")
		return
	}

	data := encodeMessages(c.messages)
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(data)
		if err != nil {
			s.warn("Append", peer, err)
			return
		}
		data = sealed
	}
	if err := s.backend.Write(peer, data); err != nil {
		s.warn("Append", peer, err)
	}
}

func (s *Store) snapshot(peer roster.PeerID, c *conversation) Record {
	messages := make([]Message, len(c.messages))
	copy(messages, c.messages)
	return Record{Peer: peer, Messages: messages}
}

func (s *Store) warn(function string, peer roster.PeerID, err error) {
	logrus.WithFields(logrus.Fields{
		"function": function,
		"peer":     peer,
		"error":    err.Error(),
	}).Error("Conversation persistence failed")

	if s.warned || s.warningCallback == nil {
		return
	}
	s.warned = true
	s.warningCallback(fmt.Errorf("%w: %s %q: %v", ErrPersistence, function, peer, err))
}
