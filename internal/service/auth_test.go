package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/auth"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/domain"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/event"
	apperrors "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/errors"
	pkgkafka "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/kafka"
)

// --- Mock Account Repository ---

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockAccountRepository) SetSuspended(ctx context.Context, id string, suspended bool) error {
	args := m.Called(ctx, id, suspended)
	return args.Error(0)
}

// --- Mock OAuth Link Repository ---

type mockOAuthLinkRepository struct {
	mock.Mock
}

func (m *mockOAuthLinkRepository) Create(ctx context.Context, link *domain.OAuthLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *mockOAuthLinkRepository) GetByProviderAccount(ctx context.Context, provider, providerAccountID string) (*domain.OAuthLink, error) {
	args := m.Called(ctx, provider, providerAccountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OAuthLink), args.Error(1)
}

func (m *mockOAuthLinkRepository) ListByAccountID(ctx context.Context, accountID string) ([]domain.OAuthLink, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).([]domain.OAuthLink), args.Error(1)
}

func (m *mockOAuthLinkRepository) UpdateTokens(ctx context.Context, link *domain.OAuthLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *mockOAuthLinkRepository) Delete(ctx context.Context, accountID, provider string) error {
	args := m.Called(ctx, accountID, provider)
	return args.Error(0)
}

// --- Mock Session Store ---

type mockSessionStore struct {
	mock.Mock
}

func (m *mockSessionStore) Create(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	args := m.Called(ctx, session, ttl)
	return args.Error(0)
}

func (m *mockSessionStore) Get(ctx context.Context, refreshToken string) (*domain.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionStore) Renew(ctx context.Context, refreshToken string, ttl time.Duration) (*domain.Session, error) {
	args := m.Called(ctx, refreshToken, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionStore) Delete(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *mockSessionStore) DeleteAllForAccount(ctx context.Context, accountID string) (int, error) {
	args := m.Called(ctx, accountID)
	return args.Int(0), args.Error(1)
}

func (m *mockSessionStore) ListByAccount(ctx context.Context, accountID string) ([]domain.SessionInfo, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).([]domain.SessionInfo), args.Error(1)
}

func (m *mockSessionStore) CountForAccount(ctx context.Context, accountID string) (int, error) {
	args := m.Called(ctx, accountID)
	return args.Int(0), args.Error(1)
}

// --- Mock Reset Token Store ---

type mockResetTokenStore struct {
	mock.Mock
}

func (m *mockResetTokenStore) Create(ctx context.Context, token, accountID string, ttl time.Duration) error {
	args := m.Called(ctx, token, accountID, ttl)
	return args.Error(0)
}

func (m *mockResetTokenStore) Consume(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestJWTManager() *auth.JWTManager {
	return auth.NewJWTManager("test-secret-key-for-testing", 15*time.Minute)
}

func newTestEventProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

func testAuthOptions() AuthOptions {
	return AuthOptions{
		RefreshTTL:    30 * 24 * time.Hour,
		ResetTokenTTL: time.Hour,
		RotateRefresh: true,
		ResetInterval: 5 * time.Minute,
		ResetBurst:    3,
	}
}

func newTestAuthService(
	accountRepo *mockAccountRepository,
	sessions *mockSessionStore,
	resetTokens *mockResetTokenStore,
	opts AuthOptions,
) *AuthService {
	logger := newTestLogger()
	return NewAuthService(accountRepo, sessions, resetTokens, newTestJWTManager(), newTestEventProducer(), logger, opts)
}

func strPtr(s string) *string {
	return &s
}

func hashForTest(t *testing.T, password string) string {
	t.Helper()
	h, err := auth.HashPassword(password)
	require.NoError(t, err)
	return h
}

func sampleStudent(t *testing.T, password string) *domain.Account {
	now := time.Now().UTC()
	var hash *string
	if password != "" {
		hash = strPtr(hashForTest(t, password))
	}
	return &domain.Account{
		ID:           "acct-1",
		Email:        "maya@example.edu",
		PasswordHash: hash,
		DisplayName:  "Maya",
		Role:         domain.RoleStudent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	sessions := new(mockSessionStore)
	resetTokens := new(mockResetTokenStore)
	svc := newTestAuthService(accountRepo, sessions, resetTokens, testAuthOptions())
	ctx := context.Background()

	accountRepo.On("Create", ctx, mock.AnythingOfType("*domain.Account")).Return(nil)
	sessions.On("Create", ctx, mock.AnythingOfType("*domain.Session"), mock.AnythingOfType("time.Duration")).Return(nil)

	account, tokens, err := svc.Register(ctx, RegisterInput{
		Email:       "Maya@Example.edu",
		Password:    "SecurePass123",
		DisplayName: "Maya",
	})

	require.NoError(t, err)
	assert.Equal(t, "maya@example.edu", account.Email)
	assert.Equal(t, domain.RoleStudent, account.Role)
	assert.True(t, account.HasPassword())
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	accountRepo.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestRegister_TeacherRole(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	sessions := new(mockSessionStore)
	resetTokens := new(mockResetTokenStore)
	svc := newTestAuthService(accountRepo, sessions, resetTokens, testAuthOptions())
	ctx := context.Background()

	accountRepo.On("Create", ctx, mock.AnythingOfType("*domain.Account")).Return(nil)
	sessions.On("Create", ctx, mock.AnythingOfType("*domain.Session"), mock.AnythingOfType("time.Duration")).Return(nil)

	account, _, err := svc.Register(ctx, RegisterInput{
		Email:       "prof@example.edu",
		Password:    "SecurePass123",
		DisplayName: "Prof",
		Role:        domain.RoleTeacher,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RoleTeacher, account.Role)
}

func TestRegister_UnknownRole(t *testing.T) {
	svc := newTestAuthService(new(mockAccountRepository), new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())

	_, _, err := svc.Register(context.Background(), RegisterInput{
		Email:       "x@example.edu",
		Password:    "SecurePass123",
		DisplayName: "X",
		Role:        "superuser",
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	svc := newTestAuthService(accountRepo, new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	accountRepo.On("Create", ctx, mock.AnythingOfType("*domain.Account")).
		Return(apperrors.AlreadyExists("account", "email", "maya@example.edu"))

	_, _, err := svc.Register(ctx, RegisterInput{
		Email:       "maya@example.edu",
		Password:    "SecurePass123",
		DisplayName: "Maya",
	})

	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestRegister_WeakPassword(t *testing.T) {
	svc := newTestAuthService(new(mockAccountRepository), new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())

	tests := []struct {
		name     string
		password string
	}{
		{"too short", "Ab1"},
		{"no uppercase", "securepass123"},
		{"no digit", "SecurePassword"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), RegisterInput{
				Email:       "maya@example.edu",
				Password:    tt.password,
				DisplayName: "Maya",
			})
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

// --- Login Tests ---

func TestLogin_Success(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	sessions := new(mockSessionStore)
	svc := newTestAuthService(accountRepo, sessions, new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	account := sampleStudent(t, "SecurePass123")
	accountRepo.On("GetByEmail", ctx, account.Email).Return(account, nil)
	sessions.On("Create", ctx, mock.AnythingOfType("*domain.Session"), mock.AnythingOfType("time.Duration")).Return(nil)

	got, tokens, err := svc.Login(ctx, LoginInput{Email: "Maya@Example.edu", Password: "SecurePass123"})

	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func TestLogin_WrongPassword(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	svc := newTestAuthService(accountRepo, new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	account := sampleStudent(t, "SecurePass123")
	accountRepo.On("GetByEmail", ctx, account.Email).Return(account, nil)

	_, _, err := svc.Login(ctx, LoginInput{Email: account.Email, Password: "WrongPass123"})

	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	svc := newTestAuthService(accountRepo, new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	accountRepo.On("GetByEmail", ctx, "nobody@example.edu").Return(nil, apperrors.ErrNotFound)

	_, _, err := svc.Login(ctx, LoginInput{Email: "nobody@example.edu", Password: "SecurePass123"})

	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

// All credential failures carry the same message so a caller cannot tell
// which part was wrong.
func TestLogin_FailureMessagesIdentical(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	svc := newTestAuthService(accountRepo, new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	account := sampleStudent(t, "SecurePass123")
	passwordless := sampleStudent(t, "")
	passwordless.Email = "oauth-only@example.edu"

	accountRepo.On("GetByEmail", ctx, account.Email).Return(account, nil)
	accountRepo.On("GetByEmail", ctx, passwordless.Email).Return(passwordless, nil)
	accountRepo.On("GetByEmail", ctx, "nobody@example.edu").Return(nil, apperrors.ErrNotFound)

	_, _, errWrong := svc.Login(ctx, LoginInput{Email: account.Email, Password: "WrongPass123"})
	_, _, errUnknown := svc.Login(ctx, LoginInput{Email: "nobody@example.edu", Password: "SecurePass123"})
	_, _, errNoPass := svc.Login(ctx, LoginInput{Email: passwordless.Email, Password: "SecurePass123"})

	require.Error(t, errWrong)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
	assert.Equal(t, errWrong.Error(), errNoPass.Error())
}

func TestLogin_SuspendedAccount(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	svc := newTestAuthService(accountRepo, new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	account := sampleStudent(t, "SecurePass123")
	account.Suspended = true
	accountRepo.On("GetByEmail", ctx, account.Email).Return(account, nil)

	_, _, err := svc.Login(ctx, LoginInput{Email: account.Email, Password: "SecurePass123"})

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

// --- Logout Tests ---

func TestLogout(t *testing.T) {
	sessions := new(mockSessionStore)
	svc := newTestAuthService(new(mockAccountRepository), sessions, new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	sessions.On("Delete", ctx, "tok-1").Return(nil)

	require.NoError(t, svc.Logout(ctx, "tok-1"))
	sessions.AssertExpectations(t)
}

func TestLogout_MissingToken(t *testing.T) {
	svc := newTestAuthService(new(mockAccountRepository), new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())

	err := svc.Logout(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- Refresh Tests ---

func TestRefresh_Rotates(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	sessions := new(mockSessionStore)
	svc := newTestAuthService(accountRepo, sessions, new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	account := sampleStudent(t, "SecurePass123")
	session := &domain.Session{RefreshToken: "old-token", AccountID: account.ID}

	sessions.On("Get", ctx, "old-token").Return(session, nil)
	accountRepo.On("GetByID", ctx, account.ID).Return(account, nil)
	sessions.On("Create", ctx, mock.AnythingOfType("*domain.Session"), mock.AnythingOfType("time.Duration")).Return(nil)
	sessions.On("Delete", ctx, "old-token").Return(nil)

	tokens, err := svc.Refresh(ctx, "old-token")

	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEqual(t, "old-token", tokens.RefreshToken)
	sessions.AssertExpectations(t)
}

func TestRefresh_NoRotation(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	sessions := new(mockSessionStore)
	opts := testAuthOptions()
	opts.RotateRefresh = false
	svc := newTestAuthService(accountRepo, sessions, new(mockResetTokenStore), opts)
	ctx := context.Background()

	account := sampleStudent(t, "SecurePass123")
	session := &domain.Session{RefreshToken: "tok-keep", AccountID: account.ID}

	sessions.On("Get", ctx, "tok-keep").Return(session, nil)
	accountRepo.On("GetByID", ctx, account.ID).Return(account, nil)
	sessions.On("Renew", ctx, "tok-keep", opts.RefreshTTL).Return(session, nil)

	tokens, err := svc.Refresh(ctx, "tok-keep")

	require.NoError(t, err)
	assert.Equal(t, "tok-keep", tokens.RefreshToken)
	sessions.AssertNotCalled(t, "Delete", ctx, "tok-keep")
	sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_UnknownToken(t *testing.T) {
	sessions := new(mockSessionStore)
	svc := newTestAuthService(new(mockAccountRepository), sessions, new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	sessions.On("Get", ctx, "expired-token").Return(nil, apperrors.ErrNotFound)

	_, err := svc.Refresh(ctx, "expired-token")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefresh_SuspendedAccount(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	sessions := new(mockSessionStore)
	svc := newTestAuthService(accountRepo, sessions, new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	account := sampleStudent(t, "SecurePass123")
	account.Suspended = true
	session := &domain.Session{RefreshToken: "tok-1", AccountID: account.ID}

	sessions.On("Get", ctx, "tok-1").Return(session, nil)
	accountRepo.On("GetByID", ctx, account.ID).Return(account, nil)

	_, err := svc.Refresh(ctx, "tok-1")

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestRefresh_AccountGone(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	sessions := new(mockSessionStore)
	svc := newTestAuthService(accountRepo, sessions, new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	session := &domain.Session{RefreshToken: "tok-1", AccountID: "acct-deleted"}
	sessions.On("Get", ctx, "tok-1").Return(session, nil)
	accountRepo.On("GetByID", ctx, "acct-deleted").Return(nil, apperrors.ErrNotFound)
	sessions.On("Delete", ctx, "tok-1").Return(nil)

	_, err := svc.Refresh(ctx, "tok-1")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	sessions.AssertCalled(t, "Delete", ctx, "tok-1")
}

// --- VerifyToken Tests ---

func TestVerifyToken(t *testing.T) {
	svc := newTestAuthService(new(mockAccountRepository), new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())

	token, err := newTestJWTManager().Issue("acct-1", domain.RoleTeacher)
	require.NoError(t, err)

	identity, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", identity.AccountID)
	assert.Equal(t, domain.RoleTeacher, identity.Role)
}

func TestVerifyToken_Invalid(t *testing.T) {
	svc := newTestAuthService(new(mockAccountRepository), new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())

	_, err := svc.VerifyToken("garbage")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestVerifyToken_Expired(t *testing.T) {
	svc := newTestAuthService(new(mockAccountRepository), new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())

	expired := auth.NewJWTManager("test-secret-key-for-testing", -time.Minute)
	token, err := expired.Issue("acct-1", domain.RoleStudent)
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "expired")
}

// --- ChangePassword Tests ---

func TestChangePassword_Success(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	sessions := new(mockSessionStore)
	svc := newTestAuthService(accountRepo, sessions, new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	account := sampleStudent(t, "SecurePass123")
	accountRepo.On("GetByID", ctx, account.ID).Return(account, nil)
	accountRepo.On("UpdatePassword", ctx, account.ID, mock.AnythingOfType("string")).Return(nil)

	err := svc.ChangePassword(ctx, account.ID, "SecurePass123", "NewerPass456")

	require.NoError(t, err)
	// Changing a password keeps existing sessions; revocation is its own call.
	sessions.AssertNotCalled(t, "DeleteAllForAccount", mock.Anything, mock.Anything)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	svc := newTestAuthService(accountRepo, new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	account := sampleStudent(t, "SecurePass123")
	accountRepo.On("GetByID", ctx, account.ID).Return(account, nil)

	err := svc.ChangePassword(ctx, account.ID, "WrongPass123", "NewerPass456")

	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestChangePassword_PasswordlessAccount(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	svc := newTestAuthService(accountRepo, new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	account := sampleStudent(t, "")
	accountRepo.On("GetByID", ctx, account.ID).Return(account, nil)

	err := svc.ChangePassword(ctx, account.ID, "anything1A", "NewerPass456")

	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestChangePassword_SameAsCurrent(t *testing.T) {
	svc := newTestAuthService(new(mockAccountRepository), new(mockSessionStore), new(mockResetTokenStore), testAuthOptions())

	err := svc.ChangePassword(context.Background(), "acct-1", "SecurePass123", "SecurePass123")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- Password Reset Tests ---

func TestRequestPasswordReset_KnownEmail(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	resetTokens := new(mockResetTokenStore)
	svc := newTestAuthService(accountRepo, new(mockSessionStore), resetTokens, testAuthOptions())
	ctx := context.Background()

	account := sampleStudent(t, "SecurePass123")
	accountRepo.On("GetByEmail", ctx, account.Email).Return(account, nil)
	resetTokens.On("Create", ctx, mock.AnythingOfType("string"), account.ID, time.Hour).Return(nil)

	err := svc.RequestPasswordReset(ctx, account.Email)

	require.NoError(t, err)
	resetTokens.AssertExpectations(t)
}

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	resetTokens := new(mockResetTokenStore)
	svc := newTestAuthService(accountRepo, new(mockSessionStore), resetTokens, testAuthOptions())
	ctx := context.Background()

	accountRepo.On("GetByEmail", ctx, "nobody@example.edu").Return(nil, apperrors.ErrNotFound)

	// Same outcome as a known email: no error, nothing revealed.
	err := svc.RequestPasswordReset(ctx, "nobody@example.edu")

	require.NoError(t, err)
	resetTokens.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestPasswordReset_RateLimited(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	resetTokens := new(mockResetTokenStore)
	opts := testAuthOptions()
	opts.ResetBurst = 2
	svc := newTestAuthService(accountRepo, new(mockSessionStore), resetTokens, opts)
	ctx := context.Background()

	account := sampleStudent(t, "SecurePass123")
	accountRepo.On("GetByEmail", ctx, account.Email).Return(account, nil)
	resetTokens.On("Create", ctx, mock.AnythingOfType("string"), account.ID, time.Hour).Return(nil)

	require.NoError(t, svc.RequestPasswordReset(ctx, account.Email))
	require.NoError(t, svc.RequestPasswordReset(ctx, account.Email))

	err := svc.RequestPasswordReset(ctx, account.Email)
	assert.ErrorIs(t, err, apperrors.ErrTooManyRequests)

	// A different email is not affected.
	accountRepo.On("GetByEmail", ctx, "other@example.edu").Return(nil, apperrors.ErrNotFound)
	assert.NoError(t, svc.RequestPasswordReset(ctx, "other@example.edu"))
}

func TestResetPassword_Success(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	sessions := new(mockSessionStore)
	resetTokens := new(mockResetTokenStore)
	svc := newTestAuthService(accountRepo, sessions, resetTokens, testAuthOptions())
	ctx := context.Background()

	resetTokens.On("Consume", ctx, "reset-tok").Return("acct-1", nil)
	accountRepo.On("UpdatePassword", ctx, "acct-1", mock.AnythingOfType("string")).Return(nil)
	sessions.On("DeleteAllForAccount", ctx, "acct-1").Return(2, nil)

	err := svc.ResetPassword(ctx, "reset-tok", "NewerPass456")

	require.NoError(t, err)
	sessions.AssertCalled(t, "DeleteAllForAccount", ctx, "acct-1")
}

func TestResetPassword_InvalidToken(t *testing.T) {
	resetTokens := new(mockResetTokenStore)
	svc := newTestAuthService(new(mockAccountRepository), new(mockSessionStore), resetTokens, testAuthOptions())
	ctx := context.Background()

	resetTokens.On("Consume", ctx, "stale-tok").Return("", apperrors.ErrNotFound)

	err := svc.ResetPassword(ctx, "stale-tok", "NewerPass456")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestResetPassword_WeakPassword(t *testing.T) {
	resetTokens := new(mockResetTokenStore)
	svc := newTestAuthService(new(mockAccountRepository), new(mockSessionStore), resetTokens, testAuthOptions())

	err := svc.ResetPassword(context.Background(), "reset-tok", "short")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	resetTokens.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
}

// --- Session Management Tests ---

func TestListSessions(t *testing.T) {
	sessions := new(mockSessionStore)
	svc := newTestAuthService(new(mockAccountRepository), sessions, new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	now := time.Now().UTC()
	sessions.On("ListByAccount", ctx, "acct-1").Return([]domain.SessionInfo{
		{IssuedAt: now, ExpiresAt: now.Add(time.Hour)},
	}, nil)

	infos, err := svc.ListSessions(ctx, "acct-1")

	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestSetAccountSuspended_RevokesSessions(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	sessions := new(mockSessionStore)
	svc := newTestAuthService(accountRepo, sessions, new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	accountRepo.On("SetSuspended", ctx, "acct-1", true).Return(nil)
	sessions.On("DeleteAllForAccount", ctx, "acct-1").Return(2, nil)

	require.NoError(t, svc.SetAccountSuspended(ctx, "acct-1", true))
	sessions.AssertCalled(t, "DeleteAllForAccount", ctx, "acct-1")
}

func TestSetAccountSuspended_UnsuspendKeepsSessions(t *testing.T) {
	accountRepo := new(mockAccountRepository)
	sessions := new(mockSessionStore)
	svc := newTestAuthService(accountRepo, sessions, new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	accountRepo.On("SetSuspended", ctx, "acct-1", false).Return(nil)

	require.NoError(t, svc.SetAccountSuspended(ctx, "acct-1", false))
	sessions.AssertNotCalled(t, "DeleteAllForAccount", mock.Anything, mock.Anything)
}

func TestRevokeAllSessions(t *testing.T) {
	sessions := new(mockSessionStore)
	svc := newTestAuthService(new(mockAccountRepository), sessions, new(mockResetTokenStore), testAuthOptions())
	ctx := context.Background()

	sessions.On("DeleteAllForAccount", ctx, "acct-1").Return(3, nil)

	revoked, err := svc.RevokeAllSessions(ctx, "acct-1")

	require.NoError(t, err)
	assert.Equal(t, 3, revoked)
}
