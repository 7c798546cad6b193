// internal/state/redis.go
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nonstopautomation/service-fusion/internal/common/config"
	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
)

// RedisStore keeps cursors in Redis. Used when multiple instances share
// state or the local filesystem is ephemeral.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	lookback  time.Duration
	logger    logger.Logger
}

func NewRedisStore(cfg config.RedisConfig, lookback time.Duration, log logger.Logger) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &RedisStore{
		client:    rdb,
		keyPrefix: cfg.KeyPrefix,
		lookback:  lookback,
		logger:    log,
	}
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string, lookback time.Duration, log logger.Logger) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		lookback:  lookback,
		logger:    log,
	}
}

// Ping tests the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *RedisStore) cursorRedisKey(kind Kind) string {
	return fmt.Sprintf("%s:cursor:%s", s.keyPrefix, cursorKey(kind))
}

func (s *RedisStore) countersRedisKey() string {
	return s.keyPrefix + ":counters"
}

// LastPoll returns the stored cursor for kind, or now minus the lookback when
// the cursor is missing or unreadable.
func (s *RedisStore) LastPoll(ctx context.Context, kind Kind) (time.Time, error) {
	raw, err := s.client.Get(ctx, s.cursorRedisKey(kind)).Result()
	if err == redis.Nil {
		return s.fallback(kind, nil), nil
	}
	if err != nil {
		return s.fallback(kind, err), nil
	}

	t, err := parseCursor(raw)
	if err != nil {
		return s.fallback(kind, err), nil
	}
	return t, nil
}

// SetLastPoll persists the cursor for kind.
func (s *RedisStore) SetLastPoll(ctx context.Context, kind Kind, t time.Time) error {
	key := s.cursorRedisKey(kind)
	if err := s.client.Set(ctx, key, formatCursor(t), 0).Err(); err != nil {
		return errors.NewStateWriteError(key, err)
	}
	return nil
}

// Counters returns the lifetime counters hash.
func (s *RedisStore) Counters(ctx context.Context) (map[string]int64, error) {
	values, err := s.client.HGetAll(ctx, s.countersRedisKey()).Result()
	if err != nil {
		return nil, errors.NewStateReadError(s.countersRedisKey(), err)
	}

	out := make(map[string]int64, len(values))
	for k, v := range values {
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			out[k] = n
		}
	}
	return out, nil
}

// IncrementCounters adds the deltas to the lifetime counters hash.
func (s *RedisStore) IncrementCounters(ctx context.Context, deltas map[string]int64) error {
	for k, v := range deltas {
		if err := s.client.HIncrBy(ctx, s.countersRedisKey(), k, v).Err(); err != nil {
			return errors.NewStateWriteError(s.countersRedisKey(), err)
		}
	}
	return nil
}

func (s *RedisStore) fallback(kind Kind, cause error) time.Time {
	fields := map[string]interface{}{
		"record_kind": string(kind),
		"lookback":    s.lookback.String(),
	}
	log := s.logger
	if cause != nil {
		log = log.WithError(cause)
	}
	log.Warn("no usable cursor, falling back to lookback window", fields)

	return time.Now().UTC().Add(-s.lookback)
}
