package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bnema/marketwin/internal/adapters/repo/document"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix  = "marketwin"
	defaultMaxRetries = 200
)

// Repository stores each account as a JSON document under its own key.
// Update is an optimistic WATCH/MULTI transaction retried on conflict.
type Repository struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
}

var _ ports.AccountRepository = (*Repository)(nil)

type Option func(*Repository)

func WithKeyPrefix(prefix string) Option {
	return func(r *Repository) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

func NewRepository(client redis.UniversalClient, opts ...Option) *Repository {
	r := &Repository{
		client:     client,
		prefix:     defaultKeyPrefix,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dial parses redisURL and verifies the server answers.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func (r *Repository) accountKey(id domain.AccountID) string {
	return r.prefix + ":account:" + string(id)
}

func (r *Repository) indexKey() string {
	return r.prefix + ":accounts"
}

func (r *Repository) GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	data, err := r.client.Get(ctx, r.accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}

	return document.Unmarshal(data)
}

func (r *Repository) List(ctx context.Context) ([]domain.Account, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}
	sort.Strings(ids)

	accounts := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		account, err := r.GetByID(ctx, domain.AccountID(id))
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				continue
			}
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

func (r *Repository) Create(ctx context.Context, account domain.Account) error {
	data, err := document.Marshal(account)
	if err != nil {
		return err
	}

	created, err := r.client.SetNX(ctx, r.accountKey(account.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create account %s: %w", account.ID, err)
	}
	if !created {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.ID)
	}

	if err := r.client.SAdd(ctx, r.indexKey(), string(account.ID)).Err(); err != nil {
		return fmt.Errorf("index account %s: %w", account.ID, err)
	}

	return nil
}

func (r *Repository) Update(ctx context.Context, id domain.AccountID, fn ports.UpdateFunc) (domain.Account, error) {
	key := r.accountKey(id)
	var updated domain.Account

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrAccountNotFound
			}
			return fmt.Errorf("get account %s: %w", id, err)
		}

		account, err := document.Unmarshal(data)
		if err != nil {
			return err
		}
		if err := fn(&account); err != nil {
			return err
		}
		account.ID = id

		encoded, err := document.Marshal(account)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}

		updated = account
		return nil
	}

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return domain.Account{}, err
		}
		if err := ctx.Err(); err != nil {
			return domain.Account{}, err
		}
	}

	return domain.Account{}, fmt.Errorf("update account %s: %w", id, domain.ErrConcurrentUpdate)
}
