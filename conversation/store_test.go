package conversation

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/softphone/limits"
	"github.com/opd-ai/softphone/roster"
)

type fixedTime struct{ t time.Time }

func (f fixedTime) Now() time.Time { return f.t }

// memBackend is an in-memory Backend that counts reads and can be made to fail.
type memBackend struct {
	files    map[roster.PeerID][]byte
	reads    map[roster.PeerID]int
	readErr  error
	writeErr error
}

func newMemBackend() *memBackend {
	return &memBackend{
		files: make(map[roster.PeerID][]byte),
		reads: make(map[roster.PeerID]int),
	}
}

func (m *memBackend) Read(peer roster.PeerID) ([]byte, error) {
	m.reads[peer]++
	if m.readErr != nil {
		return nil, m.readErr
	}
	data, ok := m.files[peer]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (m *memBackend) Write(peer roster.PeerID, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.files[peer] = append([]byte(nil), data...)
	return nil
}

func (m *memBackend) Remove(peer roster.PeerID) error {
	delete(m.files, peer)
	return nil
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	store, err := NewStore(backend)
	require.NoError(t, err)
	return store
}

func TestNewStoreRejectsNilBackend(t *testing.T) {
	store, err := NewStore(nil)
	assert.Nil(t, store)
	assert.ErrorIs(t, err, ErrNilBackend)
}

func TestAppendPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	store := newTestStore(t, backend)

	rec, err := store.Append("bob", "me", "hi")
	require.NoError(t, err)
	require.Len(t, rec.Messages, 1)
	assert.Equal(t, "me", rec.Messages[0].Sender)
	assert.Equal(t, "hi", rec.Messages[0].Body)

	data, err := os.ReadFile(filepath.Join(dir, "bob_chat.txt"))
	require.NoError(t, err)
	assert.Equal(t, "me|||hi\n", string(data))

	restarted := newTestStore(t, backend)
	loaded, err := restarted.Load("bob")
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, "me", loaded.Messages[0].Sender)
	assert.Equal(t, "hi", loaded.Messages[0].Body)
}

func TestLoadMissingPeerIsEmpty(t *testing.T) {
	store := newTestStore(t, newMemBackend())

	rec, err := store.Load("nobody")
	require.NoError(t, err)
	assert.Equal(t, roster.PeerID("nobody"), rec.Peer)
	assert.Zero(t, rec.Len())
}

func TestLoadEmptyPeer(t *testing.T) {
	store := newTestStore(t, newMemBackend())

	_, err := store.Load("")
	assert.ErrorIs(t, err, ErrEmptyPeer)
	_, err = store.Append("", "me", "hi")
	assert.ErrorIs(t, err, ErrEmptyPeer)
	assert.ErrorIs(t, store.Clear(""), ErrEmptyPeer)
}

func TestLoadReadsStorageOnce(t *testing.T) {
	backend := newMemBackend()
	backend.files["bob"] = []byte("bob|||hello\n")
	store := newTestStore(t, backend)

	for i := 0; i < 3; i++ {
		rec, err := store.Load("bob")
		require.NoError(t, err)
		assert.Equal(t, 1, rec.Len())
	}
	_, err := store.Append("bob", "me", "hi")
	require.NoError(t, err)

	assert.Equal(t, 1, backend.reads["bob"])
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	backend := newMemBackend()
	backend.files["bob"] = []byte(strings.Join([]string{
		"bob|||one",
		"no delimiter here",
		"|||missing sender",
		"missing body|||",
		"a|||b|||c",
		"",
		"me|||two\r",
	}, "\n"))
	store := newTestStore(t, backend)

	rec, err := store.Load("bob")
	require.NoError(t, err)
	require.Len(t, rec.Messages, 2)
	assert.Equal(t, Message{Sender: "bob", Body: "one"}, rec.Messages[0])
	assert.Equal(t, Message{Sender: "me", Body: "two"}, rec.Messages[1])
}

func TestAppendEvictsOldest(t *testing.T) {
	backend := newMemBackend()
	store := newTestStore(t, backend)

	var rec Record
	var err error
	for i := 0; i <= limits.MaxHistory; i++ {
		rec, err = store.Append("bob", "me", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	require.Len(t, rec.Messages, limits.MaxHistory)
	assert.Equal(t, "msg 1", rec.Messages[0].Body)
	assert.Equal(t, fmt.Sprintf("msg %d", limits.MaxHistory), rec.Messages[limits.MaxHistory-1].Body)

	lines := strings.Count(string(backend.files["bob"]), "\n")
	assert.Equal(t, limits.MaxHistory, lines)
}

func TestLoadTruncatesOversizedFile(t *testing.T) {
	backend := newMemBackend()
	var buf bytes.Buffer
	for i := 0; i < limits.MaxHistory+5; i++ {
		fmt.Fprintf(&buf, "bob|||line %d\n", i)
	}
	backend.files["bob"] = buf.Bytes()
	store := newTestStore(t, backend)

	rec, err := store.Load("bob")
	require.NoError(t, err)
	require.Len(t, rec.Messages, limits.MaxHistory)
	assert.Equal(t, "line 5", rec.Messages[0].Body)
}

func TestAppendValidation(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		body   string
		want   error
	}{
		{"empty body", "me", "", limits.ErrMessageEmpty},
		{"too long", "me", strings.Repeat("a", limits.MaxMessageLength+1), limits.ErrMessageTooLarge},
		{"empty sender", "", "hi", ErrEmptySender},
		{"newline in body", "me", "hi\nthere", ErrUnencodable},
		{"delimiter in body", "me", "a|||b", ErrUnencodable},
		{"pipe before delimiter", "me|", "hi", ErrUnencodable},
		{"pipe after delimiter", "me", "|hi", ErrUnencodable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newMemBackend()
			store := newTestStore(t, backend)

			_, err := store.Append("bob", tt.sender, tt.body)
			assert.ErrorIs(t, err, tt.want)

			rec, err := store.Load("bob")
			require.NoError(t, err)
			assert.Zero(t, rec.Len())
			assert.Empty(t, backend.files)
		})
	}
}

func TestAppendAcceptsMaxLength(t *testing.T) {
	store := newTestStore(t, newMemBackend())

	body := strings.Repeat("é", limits.MaxMessageLength)
	rec, err := store.Append("bob", "me", body)
	require.NoError(t, err)
	assert.Equal(t, body, rec.Messages[0].Body)
}

func TestRecordIsACopy(t *testing.T) {
	store := newTestStore(t, newMemBackend())

	rec, err := store.Append("bob", "me", "hi")
	require.NoError(t, err)
	rec.Messages[0].Body = "changed"

	again, err := store.Load("bob")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Messages[0].Body)
}

func TestWriteFailureWarnsOnce(t *testing.T) {
	backend := newMemBackend()
	backend.writeErr = errors.New("disk full")
	store := newTestStore(t, backend)

	var warnings []error
	store.OnWarning(func(err error) { warnings = append(warnings, err) })

	for i := 0; i < 3; i++ {
		rec, err := store.Append("bob", "me", "hi")
		require.NoError(t, err)
		assert.Equal(t, i+1, rec.Len())
	}

	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], ErrPersistence)
}

func TestReadFailureBlocksOverwrite(t *testing.T) {
	backend := newMemBackend()
	backend.files["bob"] = []byte("bob|||keep me\n")
	backend.readErr = errors.New("permission denied")
	store := newTestStore(t, backend)

	var warned bool
	store.OnWarning(func(error) { warned = true })

	rec, err := store.Load("bob")
	require.NoError(t, err)
	assert.Zero(t, rec.Len())
	assert.True(t, warned)

	rec, err = store.Append("bob", "me", "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Len())
	assert.Equal(t, "bob|||keep me\n", string(backend.files["bob"]))

	require.NoError(t, store.Clear("bob"))
	_, err = store.Append("bob", "me", "fresh")
	require.NoError(t, err)
	assert.Equal(t, "me|||fresh\n", string(backend.files["bob"]))
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	store := newTestStore(t, backend)

	_, err = store.Append("bob", "me", "hi")
	require.NoError(t, err)
	require.NoError(t, store.Clear("bob"))

	rec, err := store.Load("bob")
	require.NoError(t, err)
	assert.Zero(t, rec.Len())
	_, err = os.Stat(backend.Path("bob"))
	assert.True(t, os.IsNotExist(err))

	// Clearing again is a no-op.
	assert.NoError(t, store.Clear("bob"))
}

func TestPeers(t *testing.T) {
	store := newTestStore(t, newMemBackend())

	for _, p := range []roster.PeerID{"carol", "alice", "bob"} {
		_, err := store.Append(p, "me", "hi")
		require.NoError(t, err)
	}
	_, err := store.Load("dave")
	require.NoError(t, err)

	assert.Equal(t, []roster.PeerID{"alice", "bob", "carol"}, store.Peers())
}

func TestExport(t *testing.T) {
	backend := newMemBackend()
	backend.files["bob"] = []byte("bob|||from disk\n")
	store := newTestStore(t, backend)
	store.SetTimeProvider(fixedTime{time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)})

	_, err := store.Append("bob", "me", "hi")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, store.Export("bob", &buf))
	assert.Equal(t, "bob: from disk\n[2024-03-09 14:05:07] me: hi\n", buf.String())
}

func TestFileBackendEscapesPeer(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)

	path := backend.Path("../etc/passwd")
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, "..%2Fetc%2Fpasswd_chat.txt", filepath.Base(path))

	_, err = NewFileBackend("")
	assert.Error(t, err)
}

func TestSealedStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)

	sealer, err := NewSecretboxSealer([]byte("correct horse"), dir)
	require.NoError(t, err)
	store := newTestStore(t, backend)
	store.SetSealer(sealer)

	_, err = store.Append("bob", "me", "secret")
	require.NoError(t, err)

	raw, err := os.ReadFile(backend.Path("bob"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")

	// Same passphrase and salt file decrypt after restart.
	again, err := NewSecretboxSealer([]byte("correct horse"), dir)
	require.NoError(t, err)
	restarted := newTestStore(t, backend)
	restarted.SetSealer(again)
	rec, err := restarted.Load("bob")
	require.NoError(t, err)
	require.Len(t, rec.Messages, 1)
	assert.Equal(t, "secret", rec.Messages[0].Body)

	// A wrong passphrase fails to open and warns.
	wrong, err := NewSecretboxSealer([]byte("wrong"), dir)
	require.NoError(t, err)
	locked := newTestStore(t, backend)
	locked.SetSealer(wrong)
	var warning error
	locked.OnWarning(func(err error) { warning = err })
	rec, err = locked.Load("bob")
	require.NoError(t, err)
	assert.Zero(t, rec.Len())
	assert.ErrorIs(t, warning, ErrPersistence)
}
