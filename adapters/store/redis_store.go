package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
)

// RedisStore is a Redis implementation of the TokenStore interface.
// Session containers expire with their refresh tier; offline credentials
// live under their own keys with the offline TTL and survive session
// deletion.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis token store
func NewRedisStore(client *redis.Client) ports.TokenStore {
	return &RedisStore{
		client: client,
		prefix: "trustcore:",
	}
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return s.prefix + "session:" + sessionID
}

func (s *RedisStore) offlineKey(userID string) string {
	return s.prefix + "offline:" + userID
}

// SaveSession atomically replaces the credential set for a session
func (s *RedisStore) SaveSession(ctx context.Context, sessionID string, set *core.CredentialSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal credential set: %w", err)
	}

	// The container lives as long as the refresh tier can still be used
	ttl := time.Until(set.Refresh.ExpiresAt())
	if ttl <= 0 {
		ttl = time.Minute
	}

	if err := s.client.Set(ctx, s.sessionKey(sessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// GetSession returns the credential set for a session
func (s *RedisStore) GetSession(ctx context.Context, sessionID string) (*core.CredentialSet, error) {
	payload, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var set core.CredentialSet
	if err := json.Unmarshal(payload, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential set: %w", err)
	}

	return &set, nil
}

// DeleteSession destroys the session container; offline credentials survive
func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SaveOffline persists an offline credential keyed by user identity
func (s *RedisStore) SaveOffline(ctx context.Context, userID string, cred core.Credential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal offline credential: %w", err)
	}

	ttl := time.Until(cred.ExpiresAt())
	if ttl <= 0 {
		ttl = time.Minute
	}

	if err := s.client.Set(ctx, s.offlineKey(userID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save offline credential: %w", err)
	}

	return nil
}

// GetOffline returns the offline credential for a user
func (s *RedisStore) GetOffline(ctx context.Context, userID string) (core.Credential, error) {
	payload, err := s.client.Get(ctx, s.offlineKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.Credential{}, core.ErrSessionNotFound
	}
	if err != nil {
		return core.Credential{}, fmt.Errorf("failed to get offline credential: %w", err)
	}

	var cred core.Credential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return core.Credential{}, fmt.Errorf("failed to unmarshal offline credential: %w", err)
	}

	return cred, nil
}

// DeleteOffline removes a user's offline credential
func (s *RedisStore) DeleteOffline(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.offlineKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete offline credential: %w", err)
	}
	return nil
}
