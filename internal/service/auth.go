package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/auth"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/domain"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/event"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/repository"
	apperrors "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/errors"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/middleware"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// AuthOptions carries the tunable policy knobs for the auth service.
type AuthOptions struct {
	// RefreshTTL is the lifetime of a refresh token session.
	RefreshTTL time.Duration

	// ResetTokenTTL is the lifetime of a password reset token.
	ResetTokenTTL time.Duration

	// RotateRefresh controls whether a successful refresh replaces the
	// refresh token. When false the same token is kept and its TTL renewed.
	RotateRefresh bool

	// ResetInterval and ResetBurst configure the per-email throttle on
	// password reset requests.
	ResetInterval time.Duration
	ResetBurst    int
}

// AuthService implements registration, login, token refresh, and password
// lifecycle operations.
type AuthService struct {
	accountRepo repository.AccountRepository
	sessions    repository.SessionStore
	resetTokens repository.ResetTokenStore
	jwtManager  *auth.JWTManager
	producer    *event.Producer
	logger      *slog.Logger
	opts        AuthOptions
	resetLimit  *resetRateLimiter
}

// NewAuthService creates a new auth service.
func NewAuthService(
	accountRepo repository.AccountRepository,
	sessions repository.SessionStore,
	resetTokens repository.ResetTokenStore,
	jwtManager *auth.JWTManager,
	producer *event.Producer,
	logger *slog.Logger,
	opts AuthOptions,
) *AuthService {
	return &AuthService{
		accountRepo: accountRepo,
		sessions:    sessions,
		resetTokens: resetTokens,
		jwtManager:  jwtManager,
		producer:    producer,
		logger:      logger,
		opts:        opts,
		resetLimit:  newResetRateLimiter(opts.ResetInterval, opts.ResetBurst),
	}
}

// --- Input types ---

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

// LoginInput holds the parameters for logging in.
type LoginInput struct {
	Email    string
	Password string
}

// --- Operations ---

// Register creates a new account, hashes the password, and opens a session.
// An omitted role defaults to student.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.Account, *domain.TokenPair, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.DisplayName == "" {
		return nil, nil, apperrors.InvalidInput("display name is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	role := input.Role
	if role == "" {
		role = domain.DefaultRole
	}
	if !domain.IsValidRole(role) {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("unknown role %q", role))
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: &hash,
		DisplayName:  input.DisplayName,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, nil, fmt.Errorf("create account: %w", err)
	}

	tokens, err := s.issueTokens(ctx, account)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishAccountRegistered(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.registered event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID),
		slog.String("role", account.Role),
	)

	return account, tokens, nil
}

// Login authenticates an account with email and password, opening a session.
// Unknown email, wrong password, and password-less accounts all fail with the
// same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.Account, *domain.TokenPair, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.InvalidCredentials()
		}
		return nil, nil, fmt.Errorf("get account by email: %w", err)
	}

	// An account created through a provider has no password to check.
	if !account.HasPassword() || !auth.VerifyPassword(input.Password, *account.PasswordHash) {
		return nil, nil, apperrors.InvalidCredentials()
	}

	if account.Suspended {
		if err := s.producer.PublishLoginDenied(ctx, account, "suspended"); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish login_denied event",
				slog.String("account_id", account.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, nil, apperrors.Forbidden("account is suspended")
	}

	tokens, err := s.issueTokens(ctx, account)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "account logged in",
		slog.String("account_id", account.ID),
	)

	return account, tokens, nil
}

// Logout ends the session identified by the refresh token. Logging out an
// already-ended session is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperrors.InvalidInput("refresh token is required")
	}

	if err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// Refresh exchanges a live refresh token for a new access token. With
// rotation on the refresh token is replaced and the old one stops working;
// with rotation off the same token is kept and its lifetime renewed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	session, err := s.sessions.Get(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid or expired refresh token")
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	account, err := s.accountRepo.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// The account vanished under a live session; drop the session.
			_ = s.sessions.Delete(ctx, refreshToken)
			return nil, apperrors.Unauthorized("invalid or expired refresh token")
		}
		return nil, fmt.Errorf("get account for refresh: %w", err)
	}

	if account.Suspended {
		return nil, apperrors.Forbidden("account is suspended")
	}

	if !s.opts.RotateRefresh {
		if _, err := s.sessions.Renew(ctx, refreshToken, s.opts.RefreshTTL); err != nil {
			return nil, fmt.Errorf("renew session: %w", err)
		}

		accessToken, err := s.jwtManager.Issue(account.ID, account.Role)
		if err != nil {
			return nil, fmt.Errorf("issue access token: %w", err)
		}

		return &domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
	}

	tokens, err := s.issueTokens(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	if err := s.sessions.Delete(ctx, refreshToken); err != nil {
		s.logger.ErrorContext(ctx, "failed to retire rotated refresh token",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("account_id", account.ID),
	)

	return tokens, nil
}

// VerifyToken validates an access token and returns the identity it carries.
// It satisfies middleware.TokenVerifier.
func (s *AuthService) VerifyToken(tokenString string) (*middleware.Identity, error) {
	claims, err := s.jwtManager.Verify(tokenString)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.Unauthorized("access token expired")
		}
		return nil, apperrors.Unauthorized("invalid access token")
	}

	return &middleware.Identity{
		AccountID: claims.Subject,
		Role:      claims.Role,
	}, nil
}

// ChangePassword lets an authenticated account change its password after
// proving knowledge of the current one. Existing sessions stay live; revoking
// them is a separate operation.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return apperrors.InvalidInput("new password must be different from current password")
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get account for password change: %w", err)
	}

	if !account.HasPassword() || !auth.VerifyPassword(currentPassword, *account.PasswordHash) {
		return apperrors.InvalidCredentials("current password is incorrect")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.accountRepo.UpdatePassword(ctx, account.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("account_id", account.ID),
	)

	return nil
}

// RequestPasswordReset issues a single-use reset token for the account behind
// the email and hands it to the event pipeline for delivery. The response is
// identical whether or not the email maps to an account.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	if !s.resetLimit.Allow(email) {
		return apperrors.TooManyRequests("too many reset requests, try again later")
	}

	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Do not reveal whether the email exists.
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("get account by email: %w", err)
	}

	token, err := auth.NewRefreshToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.opts.ResetTokenTTL)
	if err := s.resetTokens.Create(ctx, token, account.ID, s.opts.ResetTokenTTL); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.producer.PublishPasswordResetRequested(ctx, account, token, expiresAt); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish password_reset_requested event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("account_id", account.ID),
	)

	return nil
}

// ResetPassword sets a new password using a reset token and revokes every
// session the account holds.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperrors.InvalidInput("reset token is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	accountID, err := s.resetTokens.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Unauthorized("invalid or expired reset token")
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.accountRepo.UpdatePassword(ctx, accountID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	revoked, err := s.sessions.DeleteAllForAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("revoke sessions after reset: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("account_id", accountID),
		slog.Int("sessions_revoked", revoked),
	)

	return nil
}

// ListSessions returns metadata for the account's live sessions.
func (s *AuthService) ListSessions(ctx context.Context, accountID string) ([]domain.SessionInfo, error) {
	infos, err := s.sessions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return infos, nil
}

// CountSessions reports how many live sessions the account holds.
func (s *AuthService) CountSessions(ctx context.Context, accountID string) (int, error) {
	count, err := s.sessions.CountForAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

// RevokeAllSessions ends every session the account holds, reporting how many
// were ended.
func (s *AuthService) RevokeAllSessions(ctx context.Context, accountID string) (int, error) {
	revoked, err := s.sessions.DeleteAllForAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}

	s.logger.InfoContext(ctx, "all sessions revoked",
		slog.String("account_id", accountID),
		slog.Int("sessions_revoked", revoked),
	)

	return revoked, nil
}

// SetAccountSuspended toggles suspension on an account. Suspending also ends
// every session the account holds so the lockout is immediate.
func (s *AuthService) SetAccountSuspended(ctx context.Context, accountID string, suspended bool) error {
	if err := s.accountRepo.SetSuspended(ctx, accountID, suspended); err != nil {
		return fmt.Errorf("set account suspended: %w", err)
	}

	if suspended {
		revoked, err := s.sessions.DeleteAllForAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("revoke sessions on suspension: %w", err)
		}
		s.logger.InfoContext(ctx, "account suspended",
			slog.String("account_id", accountID),
			slog.Int("sessions_revoked", revoked),
		)
		return nil
	}

	s.logger.InfoContext(ctx, "account unsuspended",
		slog.String("account_id", accountID),
	)

	return nil
}

// StartSession opens a session for an already-authenticated account. Provider
// sign-in uses this after the callback resolves to an account.
func (s *AuthService) StartSession(ctx context.Context, account *domain.Account) (*domain.TokenPair, error) {
	return s.issueTokens(ctx, account)
}

// --- Helpers ---

// issueTokens creates an access token and opens a fresh refresh session.
func (s *AuthService) issueTokens(ctx context.Context, account *domain.Account) (*domain.TokenPair, error) {
	accessToken, err := s.jwtManager.Issue(account.ID, account.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := auth.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	session := &domain.Session{
		RefreshToken: refreshToken,
		AccountID:    account.ID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.opts.RefreshTTL),
	}

	if err := s.sessions.Create(ctx, session, s.opts.RefreshTTL); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// normalizeEmail trims whitespace and lowercases an email address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validatePassword checks that the password meets minimum complexity requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
