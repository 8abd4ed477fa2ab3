// Package backend opens the kv.Storage selected by configuration.
package backend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/prompt-library/internal/config"
	"github.com/Clark-Hu/prompt-library/internal/kv"
	"github.com/Clark-Hu/prompt-library/internal/kv/cached"
	"github.com/Clark-Hu/prompt-library/internal/kv/file"
	"github.com/Clark-Hu/prompt-library/internal/kv/memory"
	"github.com/Clark-Hu/prompt-library/internal/kv/natskv"
	"github.com/Clark-Hu/prompt-library/internal/kv/postgres"
	kvredis "github.com/Clark-Hu/prompt-library/internal/kv/redis"
	"github.com/Clark-Hu/prompt-library/internal/kv/sqlite"
)

// Open connects the configured backend, wrapping it in the L1 cache when
// enabled. The returned func releases every connection and is never nil.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (kv.Storage, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	storage, closeFn, err := open(ctx, cfg, logger)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open %s storage: %w", cfg.StorageBackend, err)
	}
	logger.Info("storage opened", zap.String("backend", cfg.StorageBackend))

	if !cfg.CacheEnabled {
		return storage, closeFn, nil
	}
	l1, err := cached.New(storage, cfg.CacheMaxBytes, time.Duration(cfg.CacheTTLSecs)*time.Second)
	if err != nil {
		closeFn()
		return nil, func() {}, fmt.Errorf("init cache: %w", err)
	}
	logger.Info("storage cache enabled",
		zap.Int64("max_bytes", cfg.CacheMaxBytes),
		zap.Int("ttl_secs", cfg.CacheTTLSecs))
	return l1, func() {
		l1.Close()
		closeFn()
	}, nil
}

func open(ctx context.Context, cfg config.Config, logger *zap.Logger) (kv.Storage, func(), error) {
	noop := func() {}
	connCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.DBConnTimeoutSecs)*time.Second)
	defer cancel()

	switch cfg.StorageBackend {
	case config.BackendMemory:
		return memory.New(cfg.MemoryQuota), noop, nil

	case config.BackendFile:
		return file.New(cfg.FilePath), noop, nil

	case config.BackendRedis:
		s, err := kvredis.New(connCtx, kvredis.Options{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, closer(logger, "redis", s.Close), nil

	case config.BackendSQLite:
		s, err := sqlite.New(connCtx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, closer(logger, "sqlite", s.Close), nil

	case config.BackendPostgres:
		s, err := postgres.New(connCtx, cfg.DBURL, postgres.Options{
			MaxConns:               int32(cfg.DBMaxConns),
			MinConns:               int32(cfg.DBMinConns),
			MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
			MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
			ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
			StatementCacheCapacity: cfg.DBStatementCache,
			Logger:                 logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.BackendNATS:
		s, err := natskv.Connect(connCtx, cfg.NATSURL, cfg.NATSBucket)
		if err != nil {
			return nil, nil, err
		}
		return s, closer(logger, "nats", s.Close), nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.StorageBackend)
	}
}

func closer(logger *zap.Logger, name string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			logger.Warn("storage close failed", zap.String("backend", name), zap.Error(err))
		}
	}
}
