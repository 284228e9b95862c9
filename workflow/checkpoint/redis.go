package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/agentgraph/config"
	"github.com/BaSui01/agentgraph/internal/tlsutil"
	"github.com/BaSui01/agentgraph/workflow"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps each checkpoint under its own key and indexes run ids in
// sorted sets scored by update time: one per graph and one for all runs.
// Index entries whose checkpoint expired are pruned by List.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// KeyPrefix defaults to "agentgraph:".
	KeyPrefix string
	// TTL expires checkpoints; 0 keeps them forever.
	TTL time.Duration
}

// NewRedisStore wraps an existing client. Close closes the client.
func NewRedisStore(client redis.UniversalClient, opts RedisOptions, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "agentgraph:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix + "checkpoint:",
		ttl:    opts.TTL,
		logger: logger.With(zap.String("component", "checkpoint_redis")),
	}
}

// DialRedisStore connects using cfg and verifies the connection.
func DialRedisStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(redisOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStore(client, RedisOptions{KeyPrefix: cfg.KeyPrefix, TTL: cfg.TTL}, logger), nil
}

func redisOptions(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = tlsutil.ClientConfig(cfg.Addr, cfg.ServerName)
	}
	return opts
}

func (s *RedisStore) runKey(runID string) string   { return s.prefix + "run:" + runID }
func (s *RedisStore) graphKey(graph string) string { return s.prefix + "graph:" + graph }
func (s *RedisStore) allKey() string               { return s.prefix + "runs" }

func (s *RedisStore) indexKey(graph string) string {
	if graph == "" {
		return s.allKey()
	}
	return s.graphKey(graph)
}

func (s *RedisStore) Save(ctx context.Context, state *workflow.RunState) error {
	if err := validateState(state); err != nil {
		return err
	}
	data, err := encode(state)
	if err != nil {
		return err
	}

	member := redis.Z{Score: float64(state.UpdatedAt.UnixMilli()), Member: state.RunID}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.runKey(state.RunID), data, s.ttl)
		pipe.ZAdd(ctx, s.allKey(), member)
		if state.Graph != "" {
			pipe.ZAdd(ctx, s.graphKey(state.Graph), member)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", state.RunID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, runID string) (*workflow.RunState, error) {
	if err := validateRunID(runID); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.runKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("load checkpoint %s: %w", runID, err)
	}
	return decode(data)
}

func (s *RedisStore) List(ctx context.Context, graph string, limit int) ([]*workflow.RunState, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	index := s.indexKey(graph)
	ids, err := s.client.ZRevRange(ctx, index, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.runKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	out := make([]*workflow.RunState, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		state, err := decode([]byte(raw))
		if err != nil {
			s.logger.Warn("skipping unreadable checkpoint", zap.String("run_id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, state)
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, index, stale...).Err(); err != nil {
			s.logger.Warn("failed to prune expired checkpoints", zap.Error(err))
		}
	}
	return sortNewest(out, limit), nil
}

func (s *RedisStore) Delete(ctx context.Context, runID string) error {
	state, err := s.Load(ctx, runID)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.runKey(runID))
		pipe.ZRem(ctx, s.allKey(), runID)
		if state.Graph != "" {
			pipe.ZRem(ctx, s.graphKey(state.Graph), runID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", runID, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
