package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown user and wrong password so the
	// response never reveals which one failed.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenMissing, ErrTokenExpired and ErrTokenInvalid are the
	// unauthenticated family: the caller has not proven who they are.
	ErrTokenMissing = errors.New("auth: missing token")
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrForbidden means the identity is valid but lacks the required role or
	// permission. Kept distinct from the token errors so callers can react
	// differently (re-login vs "not permitted").
	ErrForbidden = errors.New("auth: forbidden")

	ErrInvalidInput = errors.New("auth: invalid input")
	ErrConflict     = errors.New("auth: already exists")
	ErrNotFound     = errors.New("auth: not found")
)
