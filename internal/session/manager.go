package session

import (
	"context"
	"errors"
	"sync"

	"inventra.org/internal/auth"
	"inventra.org/internal/obs"
)

// AuthState is the observable session state. IsAuthenticated, User and Token
// always change together; a snapshot never shows a half-applied transition.
type AuthState struct {
	IsAuthenticated bool
	IsLoading       bool
	User            *Profile
	Token           string
	Err             error
}

// Manager drives the session lifecycle: Uninitialized, then Loading during any
// network call, settling in Authenticated or Unauthenticated. All transitions
// go through a single guarded commit, so concurrent operations cannot
// interleave partial state. A late response from a superseded operation is
// discarded.
type Manager struct {
	api   Backend
	creds CredentialStore

	mu       sync.Mutex
	state    AuthState
	seq      uint64
	refresh  string
	onChange func(AuthState)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithOnChange registers a state observer. The callback runs on the
// operation's goroutine while the transition commits; it must not call back
// into the manager.
func WithOnChange(fn func(AuthState)) ManagerOption {
	return func(m *Manager) { m.onChange = fn }
}

// NewManager wires the lifecycle manager to an API backend and a credential
// store.
func NewManager(api Backend, creds CredentialStore, opts ...ManagerOption) *Manager {
	m := &Manager{api: api, creds: creds}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a snapshot of the current session state.
func (m *Manager) State() AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// begin opens a new operation: it claims the next sequence number and raises
// the loading flag. Any operation begun earlier loses ownership of the state.
func (m *Manager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.state.IsLoading = true
	m.notifyLocked()
	return m.seq
}

// commit applies a transition if, and only if, the operation still owns the
// state. A superseded operation's result is dropped and its loading flag is
// left to the owner.
func (m *Manager) commit(seq uint64, apply func(*AuthState)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.seq {
		return false
	}
	apply(&m.state)
	m.state.IsLoading = false
	m.notifyLocked()
	return true
}

func (m *Manager) notifyLocked() {
	if m.onChange != nil {
		m.onChange(m.state)
	}
}

// Initialize restores a persisted session at app start. A stored token is
// validated remotely; on success the grant set is fetched and the session
// enters Authenticated. Absent or rejected credentials are cleared and the
// session enters Unauthenticated.
func (m *Manager) Initialize(ctx context.Context) error {
	seq := m.begin()

	stored, err := m.creds.Load()
	if err != nil {
		if !errors.Is(err, ErrNoCredentials) {
			obs.Log("warn", "session_credential_load_failed", map[string]any{"error": err.Error()})
		}
		m.commitUnauthenticated(seq, nil)
		return nil
	}

	user, err := m.api.Me(ctx, stored.AccessToken)
	if err != nil {
		m.commitUnauthenticated(seq, nil)
		return nil
	}
	grants, err := m.api.Permissions(ctx, stored.AccessToken)
	if err != nil {
		m.commitUnauthenticated(seq, nil)
		return nil
	}

	m.commitSession(seq, &Session{
		User:         user,
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		ExpiresAt:    stored.ExpiresAt,
	}, grants, false)
	return nil
}

// Login authenticates and, on success, persists the new token pair and enters
// Authenticated with a fresh grant set. On failure the session is
// Unauthenticated with Err populated; the error text never distinguishes an
// unknown user from a wrong password.
func (m *Manager) Login(ctx context.Context, login, password string) error {
	seq := m.begin()

	sess, err := m.api.Login(ctx, login, password)
	if err != nil {
		m.commitUnauthenticated(seq, err)
		return err
	}
	grants, err := m.api.Permissions(ctx, sess.AccessToken)
	if err != nil {
		m.commitUnauthenticated(seq, err)
		return err
	}

	m.commitSession(seq, sess, grants, true)
	return nil
}

// Logout revokes the server-side session best-effort, then unconditionally
// clears local state. Safe to call repeatedly; a second logout is a no-op that
// still lands in Unauthenticated without error.
func (m *Manager) Logout(ctx context.Context) error {
	seq := m.begin()

	m.mu.Lock()
	token := m.state.Token
	m.mu.Unlock()

	if token != "" {
		if err := m.api.Logout(ctx, token); err != nil {
			obs.Log("warn", "session_server_logout_failed", map[string]any{"error": err.Error()})
		}
	}
	m.commitUnauthenticated(seq, nil)
	return nil
}

// Refresh exchanges the refresh token for a new pair. Failure is a forced
// logout: the stale token must not survive.
func (m *Manager) Refresh(ctx context.Context) error {
	seq := m.begin()

	m.mu.Lock()
	refresh := m.refresh
	m.mu.Unlock()

	if refresh == "" {
		m.commitUnauthenticated(seq, auth.ErrTokenMissing)
		return auth.ErrTokenMissing
	}

	sess, err := m.api.Refresh(ctx, refresh)
	if err != nil {
		m.commitUnauthenticated(seq, err)
		return err
	}
	grants, err := m.api.Permissions(ctx, sess.AccessToken)
	if err != nil {
		m.commitUnauthenticated(seq, err)
		return err
	}

	m.commitSession(seq, sess, grants, true)
	return nil
}

// UpdateProfile applies a partial profile update. The local user is replaced
// only after the server confirms; failure populates Err but never demotes an
// Authenticated session.
func (m *Manager) UpdateProfile(ctx context.Context, upd auth.ProfileUpdate) error {
	seq := m.begin()

	m.mu.Lock()
	token := m.state.Token
	m.mu.Unlock()

	if token == "" {
		err := auth.ErrTokenMissing
		m.commit(seq, func(s *AuthState) { s.Err = err })
		return err
	}

	user, err := m.api.UpdateProfile(ctx, token, upd)
	if err != nil {
		m.commit(seq, func(s *AuthState) { s.Err = err })
		return err
	}
	m.commit(seq, func(s *AuthState) {
		if s.User != nil {
			s.User = &Profile{User: user, Grants: s.User.Grants}
		}
		s.Err = nil
	})
	return nil
}

// commitSession installs a fresh session. Persistence happens only when the
// operation still owns the state, so a superseded call cannot clobber the
// credential store either.
func (m *Manager) commitSession(seq uint64, sess *Session, grants *Grants, persist bool) {
	committed := m.commit(seq, func(s *AuthState) {
		s.IsAuthenticated = true
		s.User = &Profile{User: sess.User, Grants: *grants}
		s.Token = sess.AccessToken
		s.Err = nil
	})
	if !committed {
		return
	}
	m.setRefresh(seq, sess.RefreshToken)
	if !persist {
		return
	}
	if err := m.creds.Save(Credentials{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
	}); err != nil {
		obs.Log("warn", "session_credential_save_failed", map[string]any{"error": err.Error()})
	}
}

func (m *Manager) commitUnauthenticated(seq uint64, err error) {
	committed := m.commit(seq, func(s *AuthState) {
		s.IsAuthenticated = false
		s.User = nil
		s.Token = ""
		s.Err = err
	})
	if !committed {
		return
	}
	m.setRefresh(seq, "")
	_ = m.creds.Clear()
}

func (m *Manager) setRefresh(seq uint64, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.seq {
		return
	}
	m.refresh = token
}
