package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/domain"
	apperrors "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/errors"
)

const (
	sessionKeyPrefix = "session:"
	accountKeyPrefix = "account_sessions:"
)

// SessionStore implements repository.SessionStore using Redis. Each session
// lives under its refresh token with a TTL, and a per-account set indexes the
// tokens so all of an account's sessions can be found and revoked together.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new Redis-backed session store.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(refreshToken string) string {
	return sessionKeyPrefix + refreshToken
}

func accountKey(accountID string) string {
	return accountKeyPrefix + accountID
}

// Create stores a session under its refresh token with the given TTL and adds
// the token to the account's session index.
func (s *SessionStore) Create(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.RefreshToken), data, ttl)
	pipe.SAdd(ctx, accountKey(session.AccountID), session.RefreshToken)
	// The index only needs to outlive its newest member; all sessions share
	// the same TTL, so refreshing it here keeps it alive long enough.
	pipe.Expire(ctx, accountKey(session.AccountID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis create session: %w", err)
	}

	return nil
}

// Get retrieves the session stored under the refresh token.
func (s *SessionStore) Get(ctx context.Context, refreshToken string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(refreshToken)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return &session, nil
}

// Renew extends the TTL and expiry of an existing session in place. The
// refresh token stays the same.
func (s *SessionStore) Renew(ctx context.Context, refreshToken string, ttl time.Duration) (*domain.Session, error) {
	session, err := s.Get(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	session.ExpiresAt = time.Now().UTC().Add(ttl)

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(refreshToken), data, ttl)
	pipe.Expire(ctx, accountKey(session.AccountID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis renew session: %w", err)
	}

	return session, nil
}

// Delete removes a single session by refresh token. Deleting a token that no
// longer exists is not an error.
func (s *SessionStore) Delete(ctx context.Context, refreshToken string) error {
	session, err := s.Get(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(refreshToken))
	pipe.SRem(ctx, accountKey(session.AccountID), refreshToken)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}

	return nil
}

// DeleteAllForAccount removes every session belonging to the account and
// reports how many were removed.
func (s *SessionStore) DeleteAllForAccount(ctx context.Context, accountID string) (int, error) {
	tokens, err := s.client.SMembers(ctx, accountKey(accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list account sessions: %w", err)
	}

	if len(tokens) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionKey(token))
	}

	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis delete account sessions: %w", err)
	}

	if err := s.client.Del(ctx, accountKey(accountID)).Err(); err != nil {
		return 0, fmt.Errorf("redis delete session index: %w", err)
	}

	return int(removed), nil
}

// CountForAccount reports how many of the account's sessions are still live.
// Index entries whose session key has already expired are pruned as they are
// found, so the count never includes expired sessions.
func (s *SessionStore) CountForAccount(ctx context.Context, accountID string) (int, error) {
	tokens, err := s.client.SMembers(ctx, accountKey(accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list account sessions: %w", err)
	}

	count := 0
	for _, token := range tokens {
		exists, err := s.client.Exists(ctx, sessionKey(token)).Result()
		if err != nil {
			return 0, fmt.Errorf("redis check session: %w", err)
		}
		if exists == 0 {
			_ = s.client.SRem(ctx, accountKey(accountID), token).Err()
			continue
		}
		count++
	}

	return count, nil
}

// ListByAccount returns metadata for the account's live sessions. Index
// entries whose session key has already expired are pruned as they are found.
func (s *SessionStore) ListByAccount(ctx context.Context, accountID string) ([]domain.SessionInfo, error) {
	tokens, err := s.client.SMembers(ctx, accountKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list account sessions: %w", err)
	}

	infos := []domain.SessionInfo{}
	for _, token := range tokens {
		session, err := s.Get(ctx, token)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				_ = s.client.SRem(ctx, accountKey(accountID), token).Err()
				continue
			}
			return nil, err
		}
		infos = append(infos, domain.SessionInfo{
			IssuedAt:  session.IssuedAt,
			ExpiresAt: session.ExpiresAt,
		})
	}

	return infos, nil
}
