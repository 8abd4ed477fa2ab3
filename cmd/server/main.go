package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/prompt-library/internal/backend"
	"github.com/Clark-Hu/prompt-library/internal/config"
	httpserver "github.com/Clark-Hu/prompt-library/internal/http"
	"github.com/Clark-Hu/prompt-library/internal/identity"
	"github.com/Clark-Hu/prompt-library/internal/logger"
	"github.com/Clark-Hu/prompt-library/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zl, syncLogs, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer syncLogs()
	zl = zl.With(zap.String("service", "prompt-library"))

	storage, closeStorage, err := backend.Open(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("open storage", zap.Error(err))
	}
	defer closeStorage()

	keys := repository.KeysFor(cfg.Scope)
	ids := identity.New(storage, keys.UserID, zl)
	store := repository.New(storage, ids, repository.Options{Scope: cfg.Scope, Logger: zl})

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	store.Load(loadCtx)
	cancel()
	zl.Info("prompt library ready",
		zap.Int("prompts", len(store.Snapshot())),
		zap.String("scope", cfg.Scope))

	server := httpserver.New(cfg, storage, store, zl)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			zl.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Error("graceful shutdown error", zap.Error(err))
	}
}
