package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
	"github.com/redis/go-redis/v9"
)

// Store keeps credential bundles in redis so every API instance sees the
// same connections.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.SecretStore = (*Store)(nil)

// NewStore namespaces keys as <prefix>:credential:<key>. A trailing colon on
// prefix is dropped.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = "marketwin"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("secret key is empty")
	}
	if _, rest, ok := strings.Cut(key, "://"); ok {
		key = rest
	}
	return s.prefix + ":credential:" + key, nil
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	redisKey, err := s.key(key)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey, value, 0).Err(); err != nil {
		return fmt.Errorf("put credential %q: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	redisKey, err := s.key(key)
	if err != nil {
		return "", err
	}
	value, err := s.client.Get(ctx, redisKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("credential %q: %w", key, domain.ErrSecretNotFound)
		}
		return "", fmt.Errorf("get credential %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	redisKey, err := s.key(key)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("delete credential %q: %w", key, err)
	}
	return nil
}
