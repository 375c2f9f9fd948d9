package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"inventra.org/internal/ids"
)

const defaultRefreshTTL = 14 * 24 * time.Hour

// Service implements the credential-verification and session flows on top of a
// Store and a TokenIssuer. All methods are stateless per-request computations;
// the only shared state is the read-only signing secret inside the issuer.
type Service struct {
	store      Store
	tokens     *TokenIssuer
	now        func() time.Time
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service.
func NewService(store Store, tokens *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	svc := &Service{
		store:      store,
		tokens:     tokens,
		now:        time.Now,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Session is the token pair handed to a client after login, registration or
// refresh. Refresh replaces the previous pair, never appends to it.
type Session struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Login verifies credentials and mints a fresh session. Every failure path
// collapses into ErrInvalidCredentials so a caller cannot tell an unknown user
// from a wrong password.
func (s *Service) Login(ctx context.Context, login, password string) (Session, *User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return Session{}, nil, ErrInvalidCredentials
	}
	user, err := s.store.Users().FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, nil, ErrInvalidCredentials
		}
		return Session{}, nil, err
	}
	if user.Status != UserStatusActive {
		return Session{}, nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Session{}, nil, ErrInvalidCredentials
	}
	session, err := s.mintSession(ctx, user)
	if err != nil {
		return Session{}, nil, err
	}
	return session, user, nil
}

// RegisterParams carries the self-registration fields.
type RegisterParams struct {
	Username string
	Email    string
	Password string
	Name     string
}

// Register creates a new staff-level user and logs it in. Duplicate username
// or email surfaces as ErrConflict.
func (s *Service) Register(ctx context.Context, p RegisterParams) (Session, *User, error) {
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.TrimSpace(strings.ToLower(p.Email))
	p.Name = strings.TrimSpace(p.Name)
	if p.Username == "" {
		return Session{}, nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		return Session{}, nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(p.Password) < 8 {
		return Session{}, nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(p.Password)
	if err != nil {
		return Session{}, nil, err
	}
	user := &User{
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: hash,
		Role:         RoleStaff,
		Name:         p.Name,
		Status:       UserStatusActive,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return Session{}, nil, err
	}
	session, err := s.mintSession(ctx, user)
	if err != nil {
		return Session{}, nil, err
	}
	return session, user, nil
}

// Refresh exchanges a refresh credential for a new session. The old refresh
// token is revoked before the new one is issued, so exactly one chain stays
// outstanding. Any defect in the presented token maps to ErrTokenInvalid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, *User, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return Session{}, nil, ErrTokenInvalid
	}

	store := s.store.RefreshTokens()
	record, err := store.Find(ctx, tokenID)
	if err != nil {
		return Session{}, nil, ErrTokenInvalid
	}
	if record.Revoked || !s.now().Before(record.ExpiresAt) {
		return Session{}, nil, ErrTokenInvalid
	}
	if !secureCompareHash(record.TokenHash, secret) {
		// A wrong secret against a live record looks like token theft; kill the
		// record so the holder of the real secret is forced to log in again.
		_ = store.MarkRevoked(ctx, record.ID)
		return Session{}, nil, ErrTokenInvalid
	}

	user, err := s.store.Users().Find(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, nil, ErrTokenInvalid
		}
		return Session{}, nil, err
	}
	if user.Status != UserStatusActive {
		return Session{}, nil, ErrTokenInvalid
	}

	if err := store.MarkRevoked(ctx, record.ID); err != nil {
		return Session{}, nil, err
	}
	session, err := s.mintSession(ctx, user)
	if err != nil {
		return Session{}, nil, err
	}
	return session, user, nil
}

// Logout revokes every refresh token owned by the user. Access tokens stay
// stateless and run out at their natural expiry. Idempotent.
func (s *Service) Logout(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.RefreshTokens().MarkRevokedByUser(ctx, userID)
}

// Authenticate validates a bearer token and confirms the subject still exists
// and is active, so claims never outlive their user record.
func (s *Service) Authenticate(ctx context.Context, raw string) (*Claims, *User, error) {
	claims, err := s.tokens.Validate(raw)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.store.Users().Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrTokenInvalid
		}
		return nil, nil, err
	}
	if user.Status != UserStatusActive {
		return nil, nil, ErrTokenInvalid
	}
	return claims, user, nil
}

// UpdateProfile applies a partial self-service update and returns the stored
// record. Role and status are not reachable from here.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*User, error) {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		user.Name = name
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		user.Email = email
	}
	if upd.Password != nil {
		if len(*upd.Password) < 8 {
			return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
		}
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// User administration ------------------------------------------------------

// ListUsers returns every user record. Administrator surface.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.Users().List(ctx)
}

// GetUser returns a single user record. Administrator surface.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.Users().Find(ctx, userID)
}

// UpdateUser applies an administrator-level partial update. Disabling a user
// or changing their role also revokes their refresh chain so the change takes
// effect at the next token expiry rather than the next natural login.
func (s *Service) UpdateUser(ctx context.Context, userID string, upd UserUpdate) (*User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	revokeSessions := false
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		user.Name = name
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		user.Email = email
	}
	if upd.Role != nil {
		role, err := ParseRole(string(*upd.Role))
		if err != nil {
			return nil, err
		}
		if role != user.Role {
			revokeSessions = true
		}
		user.Role = role
	}
	if upd.Department != nil {
		user.Department = strings.TrimSpace(*upd.Department)
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != UserStatusActive && status != UserStatusDisabled {
			return nil, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
		}
		if status == UserStatusDisabled && user.Status != UserStatusDisabled {
			revokeSessions = true
		}
		user.Status = status
	}
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, err
	}
	if revokeSessions {
		if err := s.store.RefreshTokens().MarkRevokedByUser(ctx, userID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// DeleteUser removes the record and revokes its refresh chain.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := s.store.RefreshTokens().MarkRevokedByUser(ctx, userID); err != nil {
		return err
	}
	return s.store.Users().Delete(ctx, userID)
}

// Refresh token plumbing ---------------------------------------------------

func (s *Service) mintSession(ctx context.Context, user *User) (Session, error) {
	accessToken, accessExp, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	refreshString, record, err := s.generateRefreshToken(user.ID)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.RefreshTokens().Create(ctx, record); err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken:      accessToken,
		RefreshToken:     refreshString,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *Service) generateRefreshToken(userID string) (string, *RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	sum := sha256.Sum256([]byte(secret))
	record := &RefreshToken{
		ID:        ids.New(),
		UserID:    userID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	return record.ID + "." + secret, record, nil
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func secureCompareHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
