package cli

import (
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/config"
	"github.com/aretw0/loom/pkg/adapters/file"
	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/adapters/redis"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/persistence"
	"github.com/aretw0/loom/pkg/persistence/middleware"
	"github.com/aretw0/loom/pkg/ports"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenSessions builds the configured store, wrapped in its middlewares,
// behind a persistence manager. The closer releases backend connections.
func OpenSessions(cfg config.Config, logger *slog.Logger) (*persistence.Manager, io.Closer, error) {
	var (
		store  ports.SnapshotStore
		closer io.Closer = nopCloser{}
		opts            = []persistence.Option{
			persistence.WithLogger(logger),
			persistence.WithLockTTL(cfg.LockTTL()),
		}
	)

	switch cfg.Store.Backend {
	case config.BackendMemory:
		store = memory.NewStore()
	case config.BackendFile:
		store = file.New(cfg.Store.Dir)
	case config.BackendRedis:
		rs := redis.New(cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB,
			redis.WithPrefix(cfg.Store.Prefix),
			redis.WithTTL(cfg.StoreTTL()),
		)
		store, closer = rs, rs
		opts = append(opts, persistence.WithLocker(redis.NewLocker(rs.Client(), cfg.Store.Prefix)))
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	var mws []middleware.Middleware
	if len(cfg.Store.Redact) > 0 {
		mws = append(mws, middleware.NewRedactionMiddleware(cfg.Store.Redact))
	}
	if cfg.Store.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.Store.EncryptionKey)
		if err != nil || len(key) != 32 {
			_ = closer.Close()
			return nil, nil, fmt.Errorf("encryption key must be 32 base64-encoded bytes")
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}

	logger.Debug("store opened", "backend", cfg.Store.Backend, "middlewares", len(mws))
	return persistence.NewManager(middleware.Chain(store, mws...), opts...), closer, nil
}

// NewWorkspace builds a workspace following cfg.
func NewWorkspace(cfg config.Config, logger *slog.Logger, hooks domain.LogHooks) *loom.Workspace {
	return loom.New(
		loom.WithLogger(logger),
		loom.WithStageSetup(cfg.ApplyStage),
		loom.WithHistoryOptions(cfg.HistoryOptions()...),
		loom.WithLogHooks(hooks),
	)
}
