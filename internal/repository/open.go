package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"finreview/internal/config"
	"finreview/internal/repository/postgres"
	"finreview/internal/repository/sqlite"
)

// Open connects to the database selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.DBConfig) (*sqlx.DB, error) {
	if cfg.Driver == "sqlite" {
		zap.L().Info("opening sqlite database", zap.String("path", cfg.SQLitePath))
		return sqlite.NewDB(ctx, cfg.SQLitePath)
	}
	zap.L().Info("connecting to postgres", zap.String("host", cfg.Host), zap.String("database", cfg.Name))
	return postgres.NewDB(cfg)
}
