package repository

import (
	"context"
	"time"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/domain"
)

// AccountRepository defines the interface for account persistence operations.
type AccountRepository interface {
	// Create inserts a new account into the store.
	Create(ctx context.Context, account *domain.Account) error

	// GetByID retrieves an account by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Account, error)

	// GetByEmail retrieves an account by email address. Lookup is
	// case-insensitive.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// UpdatePassword replaces the stored password hash for the account.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// SetSuspended toggles the suspended flag on the account.
	SetSuspended(ctx context.Context, id string, suspended bool) error
}

// OAuthLinkRepository defines the interface for provider link persistence.
type OAuthLinkRepository interface {
	// Create inserts a new provider link for an account.
	Create(ctx context.Context, link *domain.OAuthLink) error

	// GetByProviderAccount retrieves a link by provider name and the
	// provider's own account identifier.
	GetByProviderAccount(ctx context.Context, provider, providerAccountID string) (*domain.OAuthLink, error)

	// ListByAccountID returns all provider links for the given account.
	ListByAccountID(ctx context.Context, accountID string) ([]domain.OAuthLink, error)

	// UpdateTokens refreshes the stored provider credentials on an
	// existing link.
	UpdateTokens(ctx context.Context, link *domain.OAuthLink) error

	// Delete removes the link between an account and a provider.
	Delete(ctx context.Context, accountID, provider string) error
}

// SessionStore defines the interface for refresh-token session state. Records
// expire on their own once the TTL elapses.
type SessionStore interface {
	// Create stores a session under its refresh token with the given TTL.
	Create(ctx context.Context, session *domain.Session, ttl time.Duration) error

	// Get retrieves the session stored under the refresh token.
	Get(ctx context.Context, refreshToken string) (*domain.Session, error)

	// Renew extends the TTL and expiry of an existing session in place.
	Renew(ctx context.Context, refreshToken string, ttl time.Duration) (*domain.Session, error)

	// Delete removes a single session by refresh token.
	Delete(ctx context.Context, refreshToken string) error

	// DeleteAllForAccount removes every session belonging to the account
	// and reports how many were removed.
	DeleteAllForAccount(ctx context.Context, accountID string) (int, error)

	// ListByAccount returns metadata for the account's live sessions. The
	// refresh tokens themselves are never included.
	ListByAccount(ctx context.Context, accountID string) ([]domain.SessionInfo, error)

	// CountForAccount reports how many live sessions the account holds.
	CountForAccount(ctx context.Context, accountID string) (int, error)
}

// ResetTokenStore defines the interface for single-use password reset tokens.
type ResetTokenStore interface {
	// Create stores a reset token pointing at the account with the given TTL.
	Create(ctx context.Context, token, accountID string, ttl time.Duration) error

	// Consume atomically retrieves and deletes the token, returning the
	// account it was issued for. A second call with the same token fails.
	Consume(ctx context.Context, token string) (string, error)
}
