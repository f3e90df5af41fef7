package conversation

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/opd-ai/softphone/roster"
)

// Backend stores one opaque blob per peer. Read must return an error
// matching fs.ErrNotExist when nothing has been stored for the peer.
type Backend interface {
	Read(peer roster.PeerID) ([]byte, error)
	Write(peer roster.PeerID, data []byte) error
	Remove(peer roster.PeerID) error
}

// FileBackend keeps each peer's history in <Dir>/<peer>_chat.txt. Peer
// identities are path-escaped so they cannot leave Dir.
type FileBackend struct {
	Dir string
}

// NewFileBackend creates the directory if needed and returns a backend
// rooted at dir.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &FileBackend{Dir: dir}, nil
}

// Path returns the history file for peer.
func (b *FileBackend) Path(peer roster.PeerID) string {
	return filepath.Join(b.Dir, url.PathEscape(string(peer))+"_chat.txt")
}

// Read returns the stored history for peer.
func (b *FileBackend) Read(peer roster.PeerID) ([]byte, error) {
	return os.ReadFile(b.Path(peer))
}

// Write replaces the stored history for peer. The file is written to a
// temporary name and renamed into place so a crash never leaves a torn file.
func (b *FileBackend) Write(peer roster.PeerID, data []byte) error {
	finalFile := b.Path(peer)
	tmpFile := finalFile + ".tmp"

	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpFile, finalFile); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Remove deletes the stored history for peer. Removing a missing file is
// not an error.
func (b *FileBackend) Remove(peer roster.PeerID) error {
	if err := os.Remove(b.Path(peer)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
