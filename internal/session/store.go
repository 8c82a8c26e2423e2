// Package session stores serialized review sessions.
package session

import (
	"context"

	"go.uber.org/zap"

	"finreview/internal/config"
	"finreview/internal/port"
)

// New returns the store selected by cfg.Store. The returned close function
// releases any connection and is never nil.
func New(ctx context.Context, cfg config.SessionConfig, rc config.RedisConfig) (port.SessionStore, func() error, error) {
	if cfg.Store != "redis" {
		zap.L().Info("using in-memory session store")
		return NewMemoryStore(), func() error { return nil }, nil
	}
	client, err := NewRedisClient(ctx, rc)
	if err != nil {
		return nil, nil, err
	}
	zap.L().Info("using redis session store", zap.String("addr", rc.Addr))
	return NewRedisStore(client), client.Close, nil
}
