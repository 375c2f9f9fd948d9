package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User is the credential-store record. PasswordHash never crosses the JSON
// boundary.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Name         string    `json:"name"`
	Department   string    `json:"department,omitempty"`
	TenantID     string    `json:"tenant_id,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken is the persisted half of a refresh credential. Only a SHA-256
// hash of the client-held secret is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// ProfileUpdate is a partial self-service update. Nil fields are left as-is.
type ProfileUpdate struct {
	Name     *string
	Email    *string
	Password *string
}

// UserUpdate is the administrator-level partial update. Role changes take
// effect on the next permission resolution; no stored permissions to migrate.
type UserUpdate struct {
	Name       *string
	Email      *string
	Role       *Role
	Department *string
	Status     *string
}
