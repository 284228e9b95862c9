package checkpoint

import (
	"context"
	"fmt"

	"github.com/BaSui01/agentgraph/config"
	"github.com/BaSui01/agentgraph/internal/database"
	"go.uber.org/zap"
)

// NewStore builds the store selected by cfg.Type: memory (default), file,
// redis or database.
func NewStore(ctx context.Context, cfg config.CheckpointConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil

	case "file":
		return NewFileStore(cfg.BaseDir, logger)

	case "redis":
		return DialRedisStore(ctx, cfg.Redis, logger)

	case "database":
		pool, err := database.Open(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		store := NewSQLStore(pool.DB(), pool.Close)
		if err := store.AutoMigrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported checkpoint store type: %s", cfg.Type)
	}
}
