package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"finreview/internal/config"
	"finreview/internal/domain"
)

const keyPrefix = "finreview:session:"

// RedisStore keeps session snapshots in redis so sessions survive restarts
// and can be shared between instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient builds a client from config and checks that the server
// answers.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "session: ping redis at %s", cfg.Addr)
	}
	return client, nil
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func (s *RedisStore) Put(ctx context.Context, id uuid.UUID, snapshot []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key(id), snapshot, ttl).Err(); err != nil {
		return eris.Wrap(err, "session: put snapshot")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) ([]byte, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "session: get snapshot")
	}
	return data, nil
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return eris.Wrap(err, "session: delete snapshot")
	}
	return nil
}

// Ping reports whether redis answers.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
