package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"inventra.org/internal/ids"
)

// MemoryStore is an in-memory Store used in tests and single-node development
// runs. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*User
	refresh map[string]*RefreshToken
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*User),
		refresh: make(map[string]*RefreshToken),
	}
}

func (s *MemoryStore) Users() UserStore                 { return (*memoryUsers)(s) }
func (s *MemoryStore) RefreshTokens() RefreshTokenStore { return (*memoryRefresh)(s) }

type memoryUsers MemoryStore

func (s *memoryUsers) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		// The id embeds its creation instant; reuse it so created_at agrees
		// with the id sort order.
		if ts := ids.Time(u.ID); !ts.IsZero() {
			u.CreatedAt = ts
		} else {
			u.CreatedAt = now
		}
	}
	u.UpdatedAt = now
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *memoryUsers) Find(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *memoryUsers) FindByLogin(_ context.Context, login string) (*User, error) {
	login = strings.TrimSpace(strings.ToLower(login))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.ToLower(u.Username) == login || strings.ToLower(u.Email) == login {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryUsers) List(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		clone := *u
		out = append(out, &clone)
	}
	return out, nil
}

func (s *memoryUsers) Update(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range s.users {
		if id == u.ID {
			continue
		}
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrConflict
		}
	}
	u.UpdatedAt = time.Now().UTC()
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *memoryUsers) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

type memoryRefresh MemoryStore

func (s *memoryRefresh) Create(_ context.Context, tok *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	if tok.CreatedAt.IsZero() {
		if ts := ids.Time(tok.ID); !ts.IsZero() {
			tok.CreatedAt = ts
		} else {
			tok.CreatedAt = time.Now().UTC()
		}
	}
	clone := *tok
	s.refresh[tok.ID] = &clone
	return nil
}

func (s *memoryRefresh) Find(_ context.Context, id string) (*RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.refresh[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *tok
	return &clone, nil
}

func (s *memoryRefresh) MarkRevoked(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.refresh[id]
	if !ok {
		return ErrNotFound
	}
	tok.Revoked = true
	return nil
}

func (s *memoryRefresh) MarkRevokedByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range s.refresh {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}
