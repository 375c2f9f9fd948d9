package auth

import "context"

// Store describes the persistence operations required by the auth subsystem.
// The credential store itself is an external collaborator; this interface is
// the whole surface the core depends on.
type Store interface {
	Users() UserStore
	RefreshTokens() RefreshTokenStore
}

// UserStore manages user records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	// FindByLogin resolves a username or an email address. Both login forms are
	// folded into one lookup so the caller cannot distinguish which one missed.
	FindByLogin(ctx context.Context, login string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
}

// RefreshTokenStore manages the refresh token lifecycle.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Find(ctx context.Context, id string) (*RefreshToken, error)
	MarkRevoked(ctx context.Context, id string) error
	MarkRevokedByUser(ctx context.Context, userID string) error
}
