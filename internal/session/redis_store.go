package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prohmpiriya/event-studio/internal/domain"
)

// RedisStore keeps the credential under one Redis key, for shared terminals
// where the session must outlive the local process and machine.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a store using key; ttl 0 means no expiry
func NewRedisStore(client redis.UniversalClient, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// Load returns the stored credential; a missing key is not an error
func (s *RedisStore) Load(ctx context.Context) (domain.Credential, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return domain.Credential(val), nil
}

// Save stores the credential with the configured TTL. When the credential is
// a JWT that expires sooner, the key expires with it.
func (s *RedisStore) Save(ctx context.Context, cred domain.Credential) error {
	ttl := s.ttl
	if exp, ok := cred.ExpiresAt(); ok {
		if remaining := time.Until(exp); remaining > 0 && (ttl == 0 || remaining < ttl) {
			ttl = remaining
		}
	}
	if err := s.client.Set(ctx, s.key, string(cred), ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Clear deletes the key
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}
