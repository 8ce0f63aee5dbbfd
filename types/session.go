package types

import "time"

// Session is the server-held record backing one authenticated browser or
// API client. The opaque token handed to the client never touches the
// database; only its keyed hash is stored, so a leaked sessions table does
// not yield usable tokens.
type Session struct {
	// TokenHash is the HMAC-SHA256 of the client-held token, hex encoded.
	// It is the primary key of the sessions table.
	TokenHash string `json:"-" db:"token_hash"`

	// UserID is the account this session authenticates as. A session maps
	// to exactly one user from creation until expiry or destruction.
	UserID int `json:"user_id" db:"user_id"`

	// CreatedAt is the timestamp the session was issued.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// ExpiresAt is the instant after which the session no longer resolves.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given instant.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
