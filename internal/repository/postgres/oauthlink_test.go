package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/domain"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/database"
	apperrors "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/errors"
)

func newLinkTestFixture(t *testing.T) (*OAuthLinkRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewOAuthLinkRepository(mock)
	return repo, mock
}

func sampleLink() *domain.OAuthLink {
	now := time.Now().UTC().Truncate(time.Microsecond)
	expiry := now.Add(time.Hour)
	return &domain.OAuthLink{
		ID:                "link-1",
		AccountID:         "acct-1234",
		Provider:          "google",
		ProviderAccountID: "google-sub-9876",
		AccessToken:       "ya29.access",
		RefreshToken:      "1//refresh",
		TokenExpiresAt:    &expiry,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func linkColumns() []string {
	return []string{
		"id", "account_id", "provider", "provider_account_id",
		"access_token", "refresh_token", "token_expires_at",
		"created_at", "updated_at",
	}
}

func linkRow(l *domain.OAuthLink) *pgxmock.Rows {
	return pgxmock.NewRows(linkColumns()).AddRow(
		l.ID, l.AccountID, l.Provider, l.ProviderAccountID,
		l.AccessToken, l.RefreshToken, l.TokenExpiresAt,
		l.CreatedAt, l.UpdatedAt,
	)
}

func TestOAuthLinkRepository_Create_Success(t *testing.T) {
	repo, mock := newLinkTestFixture(t)
	defer mock.Close()

	l := sampleLink()

	mock.ExpectExec("INSERT INTO oauth_links").
		WithArgs(
			l.ID, l.AccountID, l.Provider, l.ProviderAccountID,
			l.AccessToken, l.RefreshToken, l.TokenExpiresAt,
			l.CreatedAt, l.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), l)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOAuthLinkRepository_Create_Duplicate(t *testing.T) {
	repo, mock := newLinkTestFixture(t)
	defer mock.Close()

	l := sampleLink()

	mock.ExpectExec("INSERT INTO oauth_links").
		WithArgs(
			l.ID, l.AccountID, l.Provider, l.ProviderAccountID,
			l.AccessToken, l.RefreshToken, l.TokenExpiresAt,
			l.CreatedAt, l.UpdatedAt,
		).
		WillReturnError(fmt.Errorf(`ERROR: duplicate key value violates unique constraint "oauth_links_provider_key" (SQLSTATE 23505)`))

	err := repo.Create(context.Background(), l)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestOAuthLinkRepository_GetByProviderAccount_Success(t *testing.T) {
	repo, mock := newLinkTestFixture(t)
	defer mock.Close()

	l := sampleLink()

	mock.ExpectQuery("SELECT (.+) FROM oauth_links").
		WithArgs(l.Provider, l.ProviderAccountID).
		WillReturnRows(linkRow(l))

	got, err := repo.GetByProviderAccount(context.Background(), l.Provider, l.ProviderAccountID)
	require.NoError(t, err)
	assert.Equal(t, l, got)
}

func TestOAuthLinkRepository_GetByProviderAccount_NotFound(t *testing.T) {
	repo, mock := newLinkTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM oauth_links").
		WithArgs("google", "unknown-sub").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByProviderAccount(context.Background(), "google", "unknown-sub")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOAuthLinkRepository_ListByAccountID(t *testing.T) {
	repo, mock := newLinkTestFixture(t)
	defer mock.Close()

	l := sampleLink()

	mock.ExpectQuery("SELECT (.+) FROM oauth_links").
		WithArgs(l.AccountID).
		WillReturnRows(linkRow(l))

	links, err := repo.ListByAccountID(context.Background(), l.AccountID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, *l, links[0])
}

func TestOAuthLinkRepository_ListByAccountID_Empty(t *testing.T) {
	repo, mock := newLinkTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM oauth_links").
		WithArgs("acct-none").
		WillReturnRows(pgxmock.NewRows(linkColumns()))

	links, err := repo.ListByAccountID(context.Background(), "acct-none")
	require.NoError(t, err)
	assert.Empty(t, links)
	assert.NotNil(t, links)
}

func TestOAuthLinkRepository_UpdateTokens_Success(t *testing.T) {
	repo, mock := newLinkTestFixture(t)
	defer mock.Close()

	l := sampleLink()

	mock.ExpectExec("UPDATE oauth_links").
		WithArgs(
			l.AccessToken, l.RefreshToken, l.TokenExpiresAt,
			pgxmock.AnyArg(), l.Provider, l.ProviderAccountID,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateTokens(context.Background(), l)
	require.NoError(t, err)
}

func TestOAuthLinkRepository_Delete_NotFound(t *testing.T) {
	repo, mock := newLinkTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM oauth_links").
		WithArgs("acct-1234", "github").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), "acct-1234", "github")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
