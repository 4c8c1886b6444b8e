package domain

import (
	"time"
)

// Account represents an identity in the portal. PasswordHash is nil for
// accounts created through an OAuth provider that never set a password.
type Account struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash *string    `json:"-"`
	DisplayName  string     `json:"display_name"`
	Role         string     `json:"role"`
	Suspended    bool       `json:"suspended"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasPassword reports whether the account can authenticate with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// OAuthLink associates an account with one external provider identity.
// (Provider, ProviderAccountID) is globally unique; an account holds at most
// one link per provider.
type OAuthLink struct {
	ID                string     `json:"id"`
	AccountID         string     `json:"account_id"`
	Provider          string     `json:"provider"`
	ProviderAccountID string     `json:"provider_account_id"`
	AccessToken       string     `json:"-"`
	RefreshToken      string     `json:"-"`
	TokenExpiresAt    *time.Time `json:"token_expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
