package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/prohmpiriya/event-studio/pkg/config"
)

// OpenStore builds the credential store selected by cfg.Credential.Backend.
// The returned close function releases any connection the store holds.
func OpenStore(ctx context.Context, cfg *config.Config) (CredentialStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Credential.Backend {
	case config.CredentialBackendMemory:
		return NewMemoryStore(), noop, nil

	case config.CredentialBackendFile:
		if cfg.Credential.AgeKeyFile == "" {
			return NewFileStore(cfg.Credential.File), noop, nil
		}
		s, err := NewSealedFileStore(cfg.Credential.File, cfg.Credential.AgeKeyFile)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case config.CredentialBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr(), err)
		}
		return NewRedisStore(client, cfg.Credential.RedisKey, cfg.Credential.TTL), client.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown credential backend: %q", cfg.Credential.Backend)
}
