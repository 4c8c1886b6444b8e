package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/errors"
)

const resetKeyPrefix = "pwreset:"

// ResetTokenStore implements repository.ResetTokenStore using Redis. Tokens
// are single use: consuming one deletes it atomically.
type ResetTokenStore struct {
	client *redis.Client
}

// NewResetTokenStore creates a new Redis-backed reset token store.
func NewResetTokenStore(client *redis.Client) *ResetTokenStore {
	return &ResetTokenStore{client: client}
}

// Create stores a reset token pointing at the account with the given TTL.
func (s *ResetTokenStore) Create(ctx context.Context, token, accountID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, resetKeyPrefix+token, accountID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set reset token: %w", err)
	}
	return nil
}

// Consume atomically retrieves and deletes the token, returning the account
// it was issued for. Expired, unknown, and already-consumed tokens are
// indistinguishable to the caller.
func (s *ResetTokenStore) Consume(ctx context.Context, token string) (string, error) {
	accountID, err := s.client.GetDel(ctx, resetKeyPrefix+token).Result()
	if err != nil {
		if err == redis.Nil {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("redis consume reset token: %w", err)
	}
	return accountID, nil
}
