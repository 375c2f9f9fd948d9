// Package session is the client-side session lifecycle manager. It owns the
// AuthState machine, persists the token pair through a pluggable credential
// store and talks to the auth API over HTTP.
package session

import (
	"errors"
	"sync"
	"time"
)

// ErrNoCredentials is returned by a CredentialStore when nothing is persisted.
var ErrNoCredentials = errors.New("session: no stored credentials")

// Credentials is the persisted token pair.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CredentialStore persists the token pair between process runs. Implementations
// must be safe for concurrent use; the manager may clear while a load is in
// flight.
type CredentialStore interface {
	Load() (Credentials, error)
	Save(Credentials) error
	Clear() error
}

// MemoryStore is an in-process CredentialStore for tests and ephemeral
// sessions.
type MemoryStore struct {
	mu    sync.Mutex
	creds Credentials
	set   bool
}

var _ CredentialStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return Credentials{}, ErrNoCredentials
	}
	return s.creds, nil
}

func (s *MemoryStore) Save(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = c
	s.set = true
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{}
	s.set = false
	return nil
}
