package model

import "time"

const (
	TokenMagicLink     = "magic_link"
	TokenPasswordReset = "password_reset"
)

// AuthToken is a single-use capability credential. The raw token string is
// returned to the caller once at issue time; validity means used_at is null
// and the expiry is in the future.
type AuthToken struct {
	ID        int64      `json:"id"`
	PersonID  int64      `json:"person_id"`
	Token     string     `json:"-"`
	TokenType string     `json:"token_type"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
