package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"finreview/internal/config"
	"finreview/internal/handler"
	"finreview/internal/llm"
	"finreview/internal/llm/providers"
	"finreview/internal/port"
	"finreview/internal/repository"
	"finreview/internal/router"
	"finreview/internal/service"
	"finreview/internal/session"
	s3storage "finreview/internal/storage/s3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		zap.L().Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failed to load config")
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return eris.Wrap(err, "failed to initialize logger")
	}
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Language models are optional: without them every capability degrades
	// to its rules-only path.
	providers.Register()
	completer, chain, err := llm.BuildChain(&cfg.LLM)
	if err != nil {
		zap.L().Warn("language model unavailable, running rules-only", zap.Error(err))
		completer, chain = nil, nil
	}
	pipeline, err := service.NewPipeline(cfg, completer, chain)
	if err != nil {
		return eris.Wrap(err, "failed to build pipeline")
	}

	db, err := repository.Open(ctx, &cfg.DB)
	if err != nil {
		return eris.Wrap(err, "failed to connect to database")
	}
	defer db.Close()
	recordRepo := repository.NewRecordRepo(db)

	store, closeStore, err := session.New(ctx, cfg.Session, cfg.Redis)
	if err != nil {
		return eris.Wrap(err, "failed to initialize session store")
	}
	defer func() { _ = closeStore() }()

	var archive port.FormArchive
	if cfg.S3.Enabled {
		archive, err = s3storage.NewArchive(ctx, &cfg.S3)
		if err != nil {
			return eris.Wrap(err, "failed to initialize S3 archive")
		}
	}

	// Services
	reviewSvc := service.NewReviewService(pipeline, recordRepo, store, archive, cfg.Session, &cfg.S3)
	recordSvc := service.NewRecordService(recordRepo)
	capabilitySvc := service.NewCapabilityService(pipeline)

	// Handlers
	maxUpload := cfg.Server.MaxUploadSize << 20
	checks := map[string]handler.Check{"database": db.PingContext}
	if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
		checks["sessions"] = pinger.Ping
	}
	r := router.Setup(cfg, router.Handlers{
		Session:    handler.NewSessionHandler(reviewSvc, maxUpload),
		Capability: handler.NewCapabilityHandler(capabilitySvc, maxUpload),
		Record:     handler.NewRecordHandler(recordSvc),
		Health:     handler.NewHealthHandler(checks),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server starting", zap.String("addr", cfg.Server.Port), zap.String("environment", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return eris.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "graceful shutdown failed")
	}
	return nil
}
