package conversation

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"

	"github.com/opd-ai/softphone/limits"
)

const (
	// PBKDF2Iterations is the number of iterations for key derivation
	PBKDF2Iterations = 100000
	// SealVersion is the current sealed file format version
	SealVersion = 1
	// SaltSize is the size of the salt for PBKDF2
	SaltSize = 32
	// saltFileName holds the salt next to the history files
	saltFileName = ".salt"
)

// Sealer encrypts history files at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// SecretboxSealer seals history with NaCl secretbox under a key derived
// from a passphrase.
//
// Format: [version:2][nonce:24][ciphertext+tag:N]
type SecretboxSealer struct {
	key [32]byte
}

// NewSecretboxSealer derives a key from passphrase with PBKDF2 using the
// salt stored in dir, generating the salt on first use.
func NewSecretboxSealer(passphrase []byte, dir string) (*SecretboxSealer, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	salt, err := loadOrGenerateSalt(filepath.Join(dir, saltFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize salt: %w", err)
	}

	s := &SecretboxSealer{}
	derived := pbkdf2.Key(passphrase, salt, PBKDF2Iterations, 32, sha256.New)
	copy(s.key[:], derived)
	for i := range derived {
		derived[i] = 0
	}
	return s, nil
}

func loadOrGenerateSalt(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read salt file: %w", err)
		}
		salt := make([]byte, SaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		if err := os.WriteFile(path, salt, 0o600); err != nil {
			return nil, fmt.Errorf("failed to save salt: %w", err)
		}
		return salt, nil
	}

	if len(data) != SaltSize {
		return nil, fmt.Errorf("invalid salt file size: got %d, want %d", len(data), SaltSize)
	}
	return data, nil
}

// Seal encrypts plaintext with a fresh random nonce.
func (s *SecretboxSealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [limits.SealNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 2, 2+len(nonce)+len(plaintext)+secretbox.Overhead)
	binary.BigEndian.PutUint16(out[0:2], SealVersion)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, &s.key), nil
}

// Open authenticates and decrypts a sealed file.
func (s *SecretboxSealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < 2+limits.SealNonceSize+limits.SealOverhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrSealedFormat, len(sealed))
	}
	if v := binary.BigEndian.Uint16(sealed[0:2]); v != SealVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrSealedFormat, v)
	}

	var nonce [limits.SealNonceSize]byte
	copy(nonce[:], sealed[2:2+limits.SealNonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[2+limits.SealNonceSize:], &nonce, &s.key)
	if !ok {
		return nil, fmt.Errorf("%w: authentication failed", ErrSealedFormat)
	}
	return plaintext, nil
}
