package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists credentials to disk encrypted with AES-256-GCM. Tokens
// never touch the filesystem in plaintext.
type FileStore struct {
	mu   sync.Mutex
	path string
	aead cipher.AEAD
}

var _ CredentialStore = (*FileStore)(nil)

// NewFileStore opens an encrypted credential store at path. The key must be
// exactly 32 bytes.
func NewFileStore(path string, key []byte) (*FileStore, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("session: encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("session: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("session: init gcm: %w", err)
	}
	return &FileStore{path: path, aead: aead}, nil
}

func (s *FileStore) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, fmt.Errorf("session: read credentials: %w", err)
	}
	nonceSize := s.aead.NonceSize()
	if len(blob) < nonceSize {
		return Credentials{}, fmt.Errorf("session: credential file truncated")
	}
	plain, err := s.aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		// Wrong key or tampered file. Treat as absent rather than fatal so a
		// rotated key forces a clean re-login.
		return Credentials{}, ErrNoCredentials
	}
	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return Credentials{}, fmt.Errorf("session: decode credentials: %w", err)
	}
	return creds, nil
}

func (s *FileStore) Save(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plain, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("session: encode credentials: %w", err)
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("session: generate nonce: %w", err)
	}
	blob := s.aead.Seal(nonce, nonce, plain, nil)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: create credential dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("session: write credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("session: commit credentials: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: clear credentials: %w", err)
	}
	return nil
}
