package domain

import "time"

// Session is the TTL-store record proving a refresh token was issued and not
// yet consumed, revoked, or expired. The token itself is the store key and is
// never serialized back to clients in session listings.
type Session struct {
	RefreshToken string    `json:"-"`
	AccountID    string    `json:"account_id"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenPair holds an access and refresh token pair returned by login, OAuth
// login, and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionInfo is the client-facing view of an active session, used by the
// active-device list. The refresh token is replaced by its issue/expiry window.
type SessionInfo struct {
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
