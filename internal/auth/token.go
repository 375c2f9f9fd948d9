package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer    = "inventra"
	defaultAccessTTL = 24 * time.Hour

	tokenTypeAccess = "access"

	// Allowed clock skew when validating issued-at.
	issuedAtSkew = 5 * time.Second
)

// Claims are the verifiable identity claims embedded in an access token.
type Claims struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string { return c.Subject }

// TokenIssuer mints and validates self-contained HS256 access tokens. The
// signing secret is immutable for the process lifetime; validation needs no
// server-side session lookup.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithAccessTTL overrides the default 24h access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(t *TokenIssuer) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(t *TokenIssuer) {
		if iss := strings.TrimSpace(issuer); iss != "" {
			t.issuer = iss
		}
	}
}

// WithTokenClock overrides the time source (tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokenIssuer constructs a TokenIssuer for the given signing secret.
func NewTokenIssuer(secret []byte, opts ...TokenOption) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	t := &TokenIssuer{
		secret: secret,
		issuer: defaultIssuer,
		ttl:    defaultAccessTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// AccessTTL returns the configured access token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.ttl }

// Issue signs an access token for the user. Issuing never invalidates prior
// tokens; revocation happens on the refresh chain.
func (t *TokenIssuer) Issue(u *User) (string, time.Time, error) {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return "", time.Time{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	if !u.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("%w: user role %q", ErrInvalidInput, u.Role)
	}

	now := t.now().UTC()
	exp := now.Add(t.ttl)
	claims := Claims{
		Username:  u.Username,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate verifies signature and claims. Errors are limited to the token
// taxonomy: ErrTokenMissing, ErrTokenExpired, ErrTokenInvalid.
func (t *TokenIssuer) Validate(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenMissing
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if err := t.validateClaims(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (t *TokenIssuer) validateClaims(claims *Claims) error {
	if claims.Issuer != t.issuer {
		return ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return ErrTokenInvalid
	}
	if claims.TokenType != tokenTypeAccess {
		return ErrTokenInvalid
	}
	if !claims.Role.Valid() {
		return ErrTokenInvalid
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return ErrTokenInvalid
	}
	now := t.now().UTC()
	// Expiry boundary is inclusive: a token checked exactly at exp is expired.
	if !now.Before(claims.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	if claims.IssuedAt.Time.After(now.Add(issuedAtSkew)) {
		return ErrTokenInvalid
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return ErrTokenInvalid
	}
	return nil
}
