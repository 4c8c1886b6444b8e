package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/domain"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/event"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/repository"
	apperrors "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/errors"
)

// ProviderIdentity is what an OAuth provider asserts about the signed-in user
// after a successful code exchange.
type ProviderIdentity struct {
	Provider          string
	ProviderAccountID string
	Email             string
	DisplayName       string
	AccessToken       string
	RefreshToken      string
	TokenExpiresAt    *time.Time
}

// ProviderExchange swaps an authorization code for the provider's identity
// assertion.
type ProviderExchange interface {
	// Name returns the provider identifier, e.g. "google".
	Name() string

	// Exchange redeems the authorization code and fetches the user's
	// identity from the provider.
	Exchange(ctx context.Context, code string) (*ProviderIdentity, error)
}

// OAuthService implements provider sign-in and account linking.
type OAuthService struct {
	accountRepo repository.AccountRepository
	linkRepo    repository.OAuthLinkRepository
	authService *AuthService
	providers   map[string]ProviderExchange
	producer    *event.Producer
	logger      *slog.Logger
}

// NewOAuthService creates a new OAuth service over the given providers.
func NewOAuthService(
	accountRepo repository.AccountRepository,
	linkRepo repository.OAuthLinkRepository,
	authService *AuthService,
	producer *event.Producer,
	logger *slog.Logger,
	providers ...ProviderExchange,
) *OAuthService {
	byName := make(map[string]ProviderExchange, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &OAuthService{
		accountRepo: accountRepo,
		linkRepo:    linkRepo,
		authService: authService,
		providers:   byName,
		producer:    producer,
		logger:      logger,
	}
}

// CallbackInput holds the parameters for completing a provider callback.
type CallbackInput struct {
	// Provider names which configured provider issued the code.
	Provider string

	// Code is the authorization code from the provider redirect.
	Code string

	// AccountID is the authenticated caller's account, if any. When set,
	// the provider identity is linked to this account instead of resolving
	// to its own.
	AccountID string
}

// Callback completes a provider sign-in or link. Four outcomes are possible:
// an existing link signs its account in; an authenticated caller gains a new
// link; a fresh identity becomes a new account; and a provider email that
// collides with a password-bearing account is rejected, so a provider
// identity can never take over an account that has a password.
func (s *OAuthService) Callback(ctx context.Context, input CallbackInput) (*domain.Account, *domain.TokenPair, error) {
	if input.Code == "" {
		return nil, nil, apperrors.InvalidInput("authorization code is required")
	}

	provider, ok := s.providers[input.Provider]
	if !ok {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("unknown provider %q", input.Provider))
	}

	identity, err := provider.Exchange(ctx, input.Code)
	if err != nil {
		return nil, nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	link, err := s.linkRepo.GetByProviderAccount(ctx, identity.Provider, identity.ProviderAccountID)
	switch {
	case err == nil:
		return s.signInLinked(ctx, link, identity, input.AccountID)
	case errors.Is(err, apperrors.ErrNotFound):
		// No link yet; fall through.
	default:
		return nil, nil, fmt.Errorf("get oauth link: %w", err)
	}

	if input.AccountID != "" {
		return s.linkToAccount(ctx, input.AccountID, identity)
	}

	return s.resolveUnlinked(ctx, identity)
}

// signInLinked handles a provider identity that is already linked to an
// account.
func (s *OAuthService) signInLinked(ctx context.Context, link *domain.OAuthLink, identity *ProviderIdentity, callerID string) (*domain.Account, *domain.TokenPair, error) {
	if callerID != "" && callerID != link.AccountID {
		return nil, nil, apperrors.AlreadyExists("oauth link", "provider", identity.Provider)
	}

	account, err := s.accountRepo.GetByID(ctx, link.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("get linked account: %w", err)
	}

	if account.Suspended {
		return nil, nil, apperrors.Forbidden("account is suspended")
	}

	// Keep the freshest provider credentials on file.
	link.AccessToken = identity.AccessToken
	link.RefreshToken = identity.RefreshToken
	link.TokenExpiresAt = identity.TokenExpiresAt
	if err := s.linkRepo.UpdateTokens(ctx, link); err != nil {
		s.logger.ErrorContext(ctx, "failed to update provider tokens",
			slog.String("account_id", account.ID),
			slog.String("provider", link.Provider),
			slog.String("error", err.Error()),
		)
	}

	tokens, err := s.authService.StartSession(ctx, account)
	if err != nil {
		return nil, nil, fmt.Errorf("start session: %w", err)
	}

	s.logger.InfoContext(ctx, "provider sign-in",
		slog.String("account_id", account.ID),
		slog.String("provider", link.Provider),
	)

	return account, tokens, nil
}

// linkToAccount attaches a new provider identity to the authenticated
// caller's account.
func (s *OAuthService) linkToAccount(ctx context.Context, accountID string, identity *ProviderIdentity) (*domain.Account, *domain.TokenPair, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("get account for link: %w", err)
	}

	if account.Suspended {
		return nil, nil, apperrors.Forbidden("account is suspended")
	}

	link, err := s.createLink(ctx, account.ID, identity)
	if err != nil {
		return nil, nil, err
	}

	if err := s.producer.PublishOAuthLinked(ctx, link, false); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish oauth_linked event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "provider linked",
		slog.String("account_id", account.ID),
		slog.String("provider", identity.Provider),
	)

	// Linking happens inside an existing session; no new tokens.
	return account, nil, nil
}

// resolveUnlinked handles a provider identity with no link and no
// authenticated caller: either a brand-new account, an auto-link onto a
// password-less account with the same email, or a rejected collision with a
// password-bearing account.
func (s *OAuthService) resolveUnlinked(ctx context.Context, identity *ProviderIdentity) (*domain.Account, *domain.TokenPair, error) {
	existing, err := s.accountRepo.GetByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		// An account with a password must opt in to linking from a
		// signed-in session; a provider assertion alone is not proof of
		// ownership.
		if existing.HasPassword() {
			return nil, nil, apperrors.Forbidden("this email already has a password; sign in with your password first, then link the provider from your account")
		}
		if existing.Suspended {
			return nil, nil, apperrors.Forbidden("account is suspended")
		}
		return s.autoLink(ctx, existing, identity)
	case errors.Is(err, apperrors.ErrNotFound):
		return s.createAccount(ctx, identity)
	default:
		return nil, nil, fmt.Errorf("get account by email: %w", err)
	}
}

// autoLink attaches the provider identity to an existing password-less
// account sharing its email and signs it in.
func (s *OAuthService) autoLink(ctx context.Context, account *domain.Account, identity *ProviderIdentity) (*domain.Account, *domain.TokenPair, error) {
	link, err := s.createLink(ctx, account.ID, identity)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := s.authService.StartSession(ctx, account)
	if err != nil {
		return nil, nil, fmt.Errorf("start session: %w", err)
	}

	if err := s.producer.PublishOAuthLinked(ctx, link, false); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish oauth_linked event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "provider auto-linked",
		slog.String("account_id", account.ID),
		slog.String("provider", identity.Provider),
	)

	return account, tokens, nil
}

// createAccount provisions a new password-less account for a fresh provider
// identity and signs it in.
func (s *OAuthService) createAccount(ctx context.Context, identity *ProviderIdentity) (*domain.Account, *domain.TokenPair, error) {
	email := normalizeEmail(identity.Email)
	if email == "" {
		return nil, nil, apperrors.InvalidInput("provider did not supply an email")
	}

	displayName := identity.DisplayName
	if displayName == "" {
		displayName = email
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: displayName,
		Role:        domain.DefaultRole,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, nil, fmt.Errorf("create account: %w", err)
	}

	link, err := s.createLink(ctx, account.ID, identity)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := s.authService.StartSession(ctx, account)
	if err != nil {
		return nil, nil, fmt.Errorf("start session: %w", err)
	}

	if err := s.producer.PublishOAuthLinked(ctx, link, true); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish oauth_linked event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account created via provider",
		slog.String("account_id", account.ID),
		slog.String("provider", identity.Provider),
	)

	return account, tokens, nil
}

// createLink persists a provider link for the account.
func (s *OAuthService) createLink(ctx context.Context, accountID string, identity *ProviderIdentity) (*domain.OAuthLink, error) {
	now := time.Now().UTC()
	link := &domain.OAuthLink{
		ID:                uuid.New().String(),
		AccountID:         accountID,
		Provider:          identity.Provider,
		ProviderAccountID: identity.ProviderAccountID,
		AccessToken:       identity.AccessToken,
		RefreshToken:      identity.RefreshToken,
		TokenExpiresAt:    identity.TokenExpiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.linkRepo.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("create oauth link: %w", err)
	}

	return link, nil
}

// ListLinks returns the account's provider links.
func (s *OAuthService) ListLinks(ctx context.Context, accountID string) ([]domain.OAuthLink, error) {
	links, err := s.linkRepo.ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list oauth links: %w", err)
	}
	return links, nil
}

// Unlink removes a provider link from the account. The last sign-in method
// cannot be removed: a password-less account must keep at least one link.
func (s *OAuthService) Unlink(ctx context.Context, accountID, provider string) error {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get account for unlink: %w", err)
	}

	if !account.HasPassword() {
		links, err := s.linkRepo.ListByAccountID(ctx, accountID)
		if err != nil {
			return fmt.Errorf("list oauth links: %w", err)
		}
		if len(links) <= 1 {
			return apperrors.Conflict("cannot remove the only sign-in method")
		}
	}

	if err := s.linkRepo.Delete(ctx, accountID, provider); err != nil {
		return fmt.Errorf("delete oauth link: %w", err)
	}

	s.logger.InfoContext(ctx, "provider unlinked",
		slog.String("account_id", accountID),
		slog.String("provider", provider),
	)

	return nil
}
