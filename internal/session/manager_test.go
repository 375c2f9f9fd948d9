package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"inventra.org/internal/auth"
)

// fakeBackend scripts API responses without a network. Login calls can be
// gated on a channel to simulate slow, out-of-order responses.
type fakeBackend struct {
	mu sync.Mutex

	loginResults map[string]loginResult
	loginStarted chan string
	loginGate    map[string]chan struct{}

	meErr       error
	logoutErr   error
	logoutCalls int
	refreshErr  error
	profileErr  error
}

type loginResult struct {
	sess *Session
	err  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		loginResults: make(map[string]loginResult),
		loginGate:    make(map[string]chan struct{}),
	}
}

func sessionFor(username string) *Session {
	return &Session{
		User: &auth.User{
			ID:       "id-" + username,
			Username: username,
			Role:     auth.RoleStaff,
			Status:   auth.UserStatusActive,
		},
		AccessToken:  "access-" + username,
		RefreshToken: "refresh-" + username,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func (f *fakeBackend) Login(_ context.Context, login, _ string) (*Session, error) {
	if f.loginStarted != nil {
		f.loginStarted <- login
	}
	f.mu.Lock()
	gate := f.loginGate[login]
	res := f.loginResults[login]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return res.sess, res.err
}

func (f *fakeBackend) Me(_ context.Context, token string) (*auth.User, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return &auth.User{ID: "restored", Username: "restored", Role: auth.RoleStaff}, nil
}

func (f *fakeBackend) Permissions(_ context.Context, _ string) (*Grants, error) {
	return &Grants{
		Permissions: []string{"product.view"},
		Features:    map[string]bool{},
		ReportScope: "own",
	}, nil
}

func (f *fakeBackend) Refresh(_ context.Context, refreshToken string) (*Session, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return sessionFor("refreshed"), nil
}

func (f *fakeBackend) Logout(_ context.Context, _ string) error {
	f.mu.Lock()
	f.logoutCalls++
	f.mu.Unlock()
	return f.logoutErr
}

func (f *fakeBackend) UpdateProfile(_ context.Context, _ string, upd auth.ProfileUpdate) (*auth.User, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	u := &auth.User{ID: "id-u", Username: "u", Role: auth.RoleStaff}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	return u, nil
}

func checkConsistent(t *testing.T, s AuthState) {
	t.Helper()
	if s.IsAuthenticated != (s.User != nil) || s.IsAuthenticated != (s.Token != "") {
		t.Fatalf("inconsistent state: auth=%v user=%v token=%q", s.IsAuthenticated, s.User, s.Token)
	}
}

func TestLoginSuccessTransitionsToAuthenticated(t *testing.T) {
	api := newFakeBackend()
	api.loginResults["alice"] = loginResult{sess: sessionFor("alice")}
	store := NewMemoryStore()
	mgr := NewManager(api, store)

	if err := mgr.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	state := mgr.State()
	checkConsistent(t, state)
	if !state.IsAuthenticated || state.IsLoading || state.Err != nil {
		t.Fatalf("unexpected state: %+v", state)
	}
	if state.User.User.Username != "alice" {
		t.Fatalf("unexpected user: %+v", state.User.User)
	}
	if !state.User.Has("product.view") {
		t.Fatalf("expected grants attached")
	}

	creds, err := store.Load()
	if err != nil {
		t.Fatalf("credentials not persisted: %v", err)
	}
	if creds.AccessToken != "access-alice" || creds.RefreshToken != "refresh-alice" {
		t.Fatalf("wrong credentials persisted: %+v", creds)
	}
}

func TestLoginFailureClearsStateWithError(t *testing.T) {
	api := newFakeBackend()
	api.loginResults["alice"] = loginResult{err: auth.ErrInvalidCredentials}
	store := NewMemoryStore()
	_ = store.Save(Credentials{AccessToken: "stale"})
	mgr := NewManager(api, store)

	err := mgr.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	state := mgr.State()
	checkConsistent(t, state)
	if state.IsAuthenticated || state.IsLoading {
		t.Fatalf("unexpected state: %+v", state)
	}
	if !errors.Is(state.Err, auth.ErrInvalidCredentials) {
		t.Fatalf("error not recorded: %v", state.Err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("stale credentials survived failed login")
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	api := newFakeBackend()
	api.loginResults["alice"] = loginResult{sess: sessionFor("alice")}
	mgr := NewManager(api, NewMemoryStore())
	if err := mgr.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := mgr.Logout(context.Background()); err != nil {
			t.Fatalf("logout %d: %v", i+1, err)
		}
		state := mgr.State()
		checkConsistent(t, state)
		if state.IsAuthenticated || state.Err != nil || state.IsLoading {
			t.Fatalf("logout %d left state %+v", i+1, state)
		}
	}
	// No token after the first logout, so the server is called exactly once.
	if api.logoutCalls != 1 {
		t.Fatalf("expected 1 server logout call, got %d", api.logoutCalls)
	}
}

func TestLogoutClearsLocalStateWhenServerFails(t *testing.T) {
	api := newFakeBackend()
	api.loginResults["alice"] = loginResult{sess: sessionFor("alice")}
	api.logoutErr = errors.New("server down")
	store := NewMemoryStore()
	mgr := NewManager(api, store)
	if err := mgr.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := mgr.Logout(context.Background()); err != nil {
		t.Fatalf("logout must not surface server failure: %v", err)
	}
	state := mgr.State()
	checkConsistent(t, state)
	if state.IsAuthenticated {
		t.Fatalf("local state survived logout: %+v", state)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("credentials survived logout")
	}
}

func TestRefreshFailureForcesLogout(t *testing.T) {
	api := newFakeBackend()
	api.loginResults["alice"] = loginResult{sess: sessionFor("alice")}
	store := NewMemoryStore()
	mgr := NewManager(api, store)
	if err := mgr.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	api.refreshErr = auth.ErrTokenInvalid
	err := mgr.Refresh(context.Background())
	if !errors.Is(err, auth.ErrTokenInvalid) {
		t.Fatalf("expected token invalid, got %v", err)
	}
	state := mgr.State()
	checkConsistent(t, state)
	if state.IsAuthenticated || state.Token != "" {
		t.Fatalf("stale token left in place: %+v", state)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("credentials survived failed refresh")
	}
}

func TestRefreshSuccessRotatesSession(t *testing.T) {
	api := newFakeBackend()
	api.loginResults["alice"] = loginResult{sess: sessionFor("alice")}
	store := NewMemoryStore()
	mgr := NewManager(api, store)
	if err := mgr.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := mgr.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	state := mgr.State()
	checkConsistent(t, state)
	if !state.IsAuthenticated || state.Token != "access-refreshed" {
		t.Fatalf("session not rotated: %+v", state)
	}
	creds, err := store.Load()
	if err != nil || creds.RefreshToken != "refresh-refreshed" {
		t.Fatalf("rotated pair not persisted: %+v %v", creds, err)
	}
}

func TestUpdateProfileFailureKeepsAuthenticated(t *testing.T) {
	api := newFakeBackend()
	api.loginResults["alice"] = loginResult{sess: sessionFor("alice")}
	mgr := NewManager(api, NewMemoryStore())
	if err := mgr.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	api.profileErr = auth.ErrConflict
	err := mgr.UpdateProfile(context.Background(), auth.ProfileUpdate{})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	state := mgr.State()
	checkConsistent(t, state)
	if !state.IsAuthenticated {
		t.Fatalf("profile failure demoted session: %+v", state)
	}
	if !errors.Is(state.Err, auth.ErrConflict) {
		t.Fatalf("error not recorded: %v", state.Err)
	}
}

func TestUpdateProfileMergesOnSuccess(t *testing.T) {
	api := newFakeBackend()
	api.loginResults["alice"] = loginResult{sess: sessionFor("alice")}
	mgr := NewManager(api, NewMemoryStore())
	if err := mgr.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	name := "New Name"
	if err := mgr.UpdateProfile(context.Background(), auth.ProfileUpdate{Name: &name}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	state := mgr.State()
	if state.User.User.Name != name {
		t.Fatalf("update not applied: %+v", state.User.User)
	}
	// Grants survive the user swap.
	if !state.User.Has("product.view") {
		t.Fatalf("grants dropped on profile update")
	}
}

func TestInitializeRestoresPersistedSession(t *testing.T) {
	api := newFakeBackend()
	store := NewMemoryStore()
	_ = store.Save(Credentials{AccessToken: "stored-access", RefreshToken: "stored-refresh"})
	mgr := NewManager(api, store)

	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	state := mgr.State()
	checkConsistent(t, state)
	if !state.IsAuthenticated || state.Token != "stored-access" {
		t.Fatalf("stored session not restored: %+v", state)
	}
}

func TestInitializeClearsRejectedToken(t *testing.T) {
	api := newFakeBackend()
	api.meErr = auth.ErrTokenExpired
	store := NewMemoryStore()
	_ = store.Save(Credentials{AccessToken: "stale"})
	mgr := NewManager(api, store)

	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	state := mgr.State()
	checkConsistent(t, state)
	if state.IsAuthenticated || state.IsLoading {
		t.Fatalf("rejected token produced %+v", state)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("rejected credentials not cleared")
	}
}

func TestInitializeWithoutCredentials(t *testing.T) {
	mgr := NewManager(newFakeBackend(), NewMemoryStore())
	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	state := mgr.State()
	checkConsistent(t, state)
	if state.IsAuthenticated || state.IsLoading || state.Err != nil {
		t.Fatalf("unexpected state: %+v", state)
	}
}

// A login that resolves after a newer login has committed must not overwrite
// the newer outcome.
func TestStaleLoginResponseIsDiscarded(t *testing.T) {
	api := newFakeBackend()
	api.loginStarted = make(chan string, 2)
	slowGate := make(chan struct{})
	api.loginGate["slow"] = slowGate
	api.loginResults["slow"] = loginResult{sess: sessionFor("slow")}
	api.loginResults["fast"] = loginResult{err: auth.ErrInvalidCredentials}
	mgr := NewManager(api, NewMemoryStore())

	done := make(chan error, 1)
	go func() {
		done <- mgr.Login(context.Background(), "slow", "pw")
	}()
	<-api.loginStarted // slow login has claimed its sequence

	// A newer login fails fast and owns the final state.
	if err := mgr.Login(context.Background(), "fast", "pw"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	<-api.loginStarted

	// Now let the superseded login's success arrive late.
	close(slowGate)
	if err := <-done; err != nil {
		t.Fatalf("slow login returned error: %v", err)
	}

	state := mgr.State()
	checkConsistent(t, state)
	if state.IsAuthenticated {
		t.Fatalf("stale login response overwrote newer outcome: %+v", state)
	}
	if !errors.Is(state.Err, auth.ErrInvalidCredentials) {
		t.Fatalf("newer outcome's error lost: %v", state.Err)
	}
	if state.IsLoading {
		t.Fatalf("loading flag stuck after stale commit was dropped")
	}
}

// A logout issued while another operation is in flight wins over that
// operation's late result.
func TestLogoutSupersedesPendingOperation(t *testing.T) {
	api := newFakeBackend()
	api.loginResults["alice"] = loginResult{sess: sessionFor("alice")}
	store := NewMemoryStore()
	mgr := NewManager(api, store)
	if err := mgr.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	api.loginStarted = make(chan string, 1)
	gate := make(chan struct{})
	api.loginGate["pending"] = gate
	api.loginResults["pending"] = loginResult{sess: sessionFor("pending")}

	done := make(chan error, 1)
	go func() {
		done <- mgr.Login(context.Background(), "pending", "pw")
	}()
	<-api.loginStarted

	if err := mgr.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	close(gate)
	<-done

	state := mgr.State()
	checkConsistent(t, state)
	if state.IsAuthenticated {
		t.Fatalf("pending operation resurrected a logged-out session: %+v", state)
	}
}

func TestOnChangeObservesTransitions(t *testing.T) {
	api := newFakeBackend()
	api.loginResults["alice"] = loginResult{sess: sessionFor("alice")}

	var states []AuthState
	mgr := NewManager(api, NewMemoryStore(), WithOnChange(func(s AuthState) {
		states = append(states, s)
	}))
	if err := mgr.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if len(states) < 2 {
		t.Fatalf("expected loading then committed states, got %d", len(states))
	}
	if !states[0].IsLoading {
		t.Fatalf("first observed state not loading: %+v", states[0])
	}
	last := states[len(states)-1]
	if last.IsLoading || !last.IsAuthenticated {
		t.Fatalf("final observed state wrong: %+v", last)
	}
}
