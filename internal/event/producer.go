package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/domain"
	pkgkafka "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/kafka"
)

// Kafka topic constants for account domain events.
const (
	TopicAccountRegistered      = "portal.account.registered"
	TopicPasswordResetRequested = "portal.account.password_reset_requested"
	TopicOAuthLinked            = "portal.account.oauth_linked"
	TopicLoginDenied            = "portal.account.login_denied"
)

// Aggregate type constant.
const AggregateTypeAccount = "account"

// Source identifier for events originating from the auth service.
const SourceAuthService = "auth-service"

// AccountRegisteredData is the payload for an account.registered event.
type AccountRegisteredData struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// PasswordResetRequestedData is the payload for a password_reset_requested
// event. The notification service delivers the token by email; it is never
// returned over HTTP.
type PasswordResetRequestedData struct {
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email"`
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LoginDeniedData is the payload for a login_denied audit event.
type LoginDeniedData struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Reason    string `json:"reason"`
}

// OAuthLinkedData is the payload for an oauth_linked event.
type OAuthLinkedData struct {
	AccountID         string `json:"account_id"`
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"provider_account_id"`
	NewAccount        bool   `json:"new_account"`
}

// Producer publishes account domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the auth service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishAccountRegistered publishes an account.registered event.
func (p *Producer) PublishAccountRegistered(ctx context.Context, account *domain.Account) error {
	data := AccountRegisteredData{
		ID:          account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Role:        account.Role,
	}

	event, err := pkgkafka.NewEvent(TopicAccountRegistered, account.ID, AggregateTypeAccount, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create account.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicAccountRegistered, event); err != nil {
		return fmt.Errorf("publish account.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published account.registered event",
		slog.String("account_id", account.ID),
	)

	return nil
}

// PublishPasswordResetRequested publishes a password_reset_requested event
// carrying the single-use reset token for out-of-band delivery.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, account *domain.Account, resetToken string, expiresAt time.Time) error {
	data := PasswordResetRequestedData{
		AccountID:  account.ID,
		Email:      account.Email,
		ResetToken: resetToken,
		ExpiresAt:  expiresAt,
	}

	event, err := pkgkafka.NewEvent(TopicPasswordResetRequested, account.ID, AggregateTypeAccount, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create password_reset_requested event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPasswordResetRequested, event); err != nil {
		return fmt.Errorf("publish password_reset_requested event: %w", err)
	}

	p.logger.DebugContext(ctx, "published password_reset_requested event",
		slog.String("account_id", account.ID),
	)

	return nil
}

// PublishLoginDenied publishes a login_denied audit event, e.g. when a
// suspended account presents valid credentials.
func (p *Producer) PublishLoginDenied(ctx context.Context, account *domain.Account, reason string) error {
	data := LoginDeniedData{
		AccountID: account.ID,
		Email:     account.Email,
		Reason:    reason,
	}

	event, err := pkgkafka.NewEvent(TopicLoginDenied, account.ID, AggregateTypeAccount, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create login_denied event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicLoginDenied, event); err != nil {
		return fmt.Errorf("publish login_denied event: %w", err)
	}

	p.logger.DebugContext(ctx, "published login_denied event",
		slog.String("account_id", account.ID),
		slog.String("reason", reason),
	)

	return nil
}

// PublishOAuthLinked publishes an oauth_linked event.
func (p *Producer) PublishOAuthLinked(ctx context.Context, link *domain.OAuthLink, newAccount bool) error {
	data := OAuthLinkedData{
		AccountID:         link.AccountID,
		Provider:          link.Provider,
		ProviderAccountID: link.ProviderAccountID,
		NewAccount:        newAccount,
	}

	event, err := pkgkafka.NewEvent(TopicOAuthLinked, link.AccountID, AggregateTypeAccount, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create oauth_linked event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOAuthLinked, event); err != nil {
		return fmt.Errorf("publish oauth_linked event: %w", err)
	}

	p.logger.DebugContext(ctx, "published oauth_linked event",
		slog.String("account_id", link.AccountID),
		slog.String("provider", link.Provider),
	)

	return nil
}
