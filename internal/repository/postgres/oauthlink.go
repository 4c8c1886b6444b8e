package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/domain"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/database"
	apperrors "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/errors"
)

// OAuthLinkRepository implements repository.OAuthLinkRepository using PostgreSQL.
type OAuthLinkRepository struct {
	db database.DBTX
}

// NewOAuthLinkRepository creates a new PostgreSQL-backed provider link repository.
func NewOAuthLinkRepository(db database.DBTX) *OAuthLinkRepository {
	return &OAuthLinkRepository{db: db}
}

// Create inserts a new provider link for an account.
func (r *OAuthLinkRepository) Create(ctx context.Context, l *domain.OAuthLink) error {
	query := `
		INSERT INTO oauth_links (id, account_id, provider, provider_account_id, access_token, refresh_token, token_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		l.ID,
		l.AccountID,
		l.Provider,
		l.ProviderAccountID,
		l.AccessToken,
		l.RefreshToken,
		l.TokenExpiresAt,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("oauth link", "provider", l.Provider)
		}
		return fmt.Errorf("insert oauth link: %w", err)
	}

	return nil
}

// GetByProviderAccount retrieves a link by provider name and the provider's
// own account identifier.
func (r *OAuthLinkRepository) GetByProviderAccount(ctx context.Context, provider, providerAccountID string) (*domain.OAuthLink, error) {
	query := `
		SELECT id, account_id, provider, provider_account_id, access_token, refresh_token, token_expires_at, created_at, updated_at
		FROM oauth_links
		WHERE provider = $1 AND provider_account_id = $2`

	var l domain.OAuthLink
	err := r.db.QueryRow(ctx, query, provider, providerAccountID).Scan(
		&l.ID,
		&l.AccountID,
		&l.Provider,
		&l.ProviderAccountID,
		&l.AccessToken,
		&l.RefreshToken,
		&l.TokenExpiresAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan oauth link: %w", err)
	}

	return &l, nil
}

// ListByAccountID returns all provider links for the given account.
func (r *OAuthLinkRepository) ListByAccountID(ctx context.Context, accountID string) ([]domain.OAuthLink, error) {
	query := `
		SELECT id, account_id, provider, provider_account_id, access_token, refresh_token, token_expires_at, created_at, updated_at
		FROM oauth_links
		WHERE account_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list oauth links: %w", err)
	}
	defer rows.Close()

	var links []domain.OAuthLink
	for rows.Next() {
		var l domain.OAuthLink
		if err := rows.Scan(
			&l.ID,
			&l.AccountID,
			&l.Provider,
			&l.ProviderAccountID,
			&l.AccessToken,
			&l.RefreshToken,
			&l.TokenExpiresAt,
			&l.CreatedAt,
			&l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan oauth link row: %w", err)
		}
		links = append(links, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate oauth link rows: %w", err)
	}

	if links == nil {
		links = []domain.OAuthLink{}
	}

	return links, nil
}

// UpdateTokens refreshes the stored provider credentials on an existing link.
func (r *OAuthLinkRepository) UpdateTokens(ctx context.Context, l *domain.OAuthLink) error {
	l.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE oauth_links
		SET access_token = $1, refresh_token = $2, token_expires_at = $3, updated_at = $4
		WHERE provider = $5 AND provider_account_id = $6`

	ct, err := r.db.Exec(ctx, query,
		l.AccessToken,
		l.RefreshToken,
		l.TokenExpiresAt,
		l.UpdatedAt,
		l.Provider,
		l.ProviderAccountID,
	)
	if err != nil {
		return fmt.Errorf("update oauth link tokens: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("oauth link", l.ProviderAccountID)
	}

	return nil
}

// Delete removes the link between an account and a provider.
func (r *OAuthLinkRepository) Delete(ctx context.Context, accountID, provider string) error {
	query := `DELETE FROM oauth_links WHERE account_id = $1 AND provider = $2`

	ct, err := r.db.Exec(ctx, query, accountID, provider)
	if err != nil {
		return fmt.Errorf("delete oauth link: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("oauth link", provider)
	}

	return nil
}
