package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// keyPrefix namespaces every Redis key so unrelated consumers of the same
// instance cannot collide with us.
const keyPrefix = "nexus:"

// ErrMiss is returned by Get when a key is absent from both layers.
var ErrMiss = errors.New("cache: miss")

// Config holds Redis connection settings.
type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Layer is a two-tier cache: a Redis backing store and an in-process mirror
// map. Every write goes to both layers so the mirror stays warm and a sudden
// Redis outage never produces a cold cache. Redis failures degrade to the
// mirror and are logged, never surfaced to callers.
type Layer struct {
	rdb       *redis.Client
	memory    *memoryStore
	logger    *zap.Logger
	connected bool
}

// New builds a Layer. Connect must be called once before use; a failed
// connection leaves the Layer in memory-only mode.
func New(cfg Config, logger *zap.Logger) *Layer {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
		ReadTimeout: dialTimeout,
	})
	return &Layer{
		rdb:    rdb,
		memory: newMemoryStore(),
		logger: logger,
	}
}

// Connect pings Redis once. Failure is logged and the Layer degrades to the
// in-process map; it is never an error for the caller.
func (l *Layer) Connect(ctx context.Context) {
	if err := l.rdb.Ping(ctx).Err(); err != nil {
		l.logger.Warn("redis unavailable, using in-memory cache only", zap.Error(err))
		l.connected = false
		return
	}
	l.connected = true
	l.logger.Info("redis cache connected")
}

// Close releases the Redis connection if one was established.
func (l *Layer) Close() error {
	if l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}

// Connected reports whether the backing store answered the startup ping.
// The rate-limiter middleware reads this before using the raw client.
func (l *Layer) Connected() bool {
	return l.connected
}

// Redis exposes the raw client for collaborators that need native commands
// (atomic INCR/EXPIRE). Only meaningful when Connected is true.
func (l *Layer) Redis() *redis.Client {
	return l.rdb
}

// Get returns the serialized value for key, trying Redis first and falling
// back to the mirror. Returns ErrMiss when absent from both.
func (l *Layer) Get(ctx context.Context, key string) ([]byte, error) {
	if l.connected {
		raw, err := l.rdb.Get(ctx, keyPrefix+key).Bytes()
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, redis.Nil) {
			l.logger.Warn("redis GET failed", zap.String("key", key), zap.Error(err))
		}
	}
	if data, ok := l.memory.get(key, time.Now()); ok {
		return data, nil
	}
	return nil, ErrMiss
}

// GetObject unmarshals the cached value for key into out.
// A value that fails to deserialize counts as a miss.
func (l *Layer) GetObject(ctx context.Context, key string, out any) error {
	raw, err := l.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		l.logger.Debug("invalid cached payload", zap.String("key", key), zap.Error(err))
		return ErrMiss
	}
	return nil
}

// GetMany batch-reads keys. Missing keys are simply absent from the result;
// partial misses never fail the call.
func (l *Layer) GetMany(ctx context.Context, keys []string) map[string][]byte {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result
	}

	if l.connected {
		prefixed := make([]string, len(keys))
		for i, k := range keys {
			prefixed[i] = keyPrefix + k
		}
		values, err := l.rdb.MGet(ctx, prefixed...).Result()
		if err != nil {
			l.logger.Warn("redis MGET failed", zap.Error(err))
		} else {
			for i, v := range values {
				if s, ok := v.(string); ok {
					result[keys[i]] = []byte(s)
				}
			}
		}
	}

	now := time.Now()
	for _, k := range keys {
		if _, ok := result[k]; ok {
			continue
		}
		if data, ok := l.memory.get(k, now); ok {
			result[k] = data
		}
	}
	return result
}

// Set serializes value and writes it to Redis and to the mirror with the
// given TTL. The mirror is always written, even while Redis is healthy, so
// it acts as a warm standby rather than a pure failure path.
func (l *Layer) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		l.logger.Warn("cache SET marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if l.connected {
		if err := l.rdb.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
			l.logger.Warn("redis SET failed", zap.String("key", key), zap.Error(err))
		}
	}
	l.memory.set(key, data, time.Now().Add(ttl))
}

// SetMany writes every entry with the same TTL. Redis writes go through one
// pipeline; a pipeline failure falls back to mirror-only, so no write is
// silently dropped.
func (l *Layer) SetMany(ctx context.Context, values map[string]any, ttl time.Duration) {
	if len(values) == 0 {
		return
	}
	serialized := make(map[string][]byte, len(values))
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			l.logger.Warn("cache SET marshal failed", zap.String("key", k), zap.Error(err))
			continue
		}
		serialized[k] = data
	}

	if l.connected {
		pipe := l.rdb.Pipeline()
		for k, data := range serialized {
			pipe.Set(ctx, keyPrefix+k, data, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			l.logger.Warn("redis pipeline SET failed", zap.Error(err))
		}
	}

	expiresAt := time.Now().Add(ttl)
	for k, data := range serialized {
		l.memory.set(k, data, expiresAt)
	}
}

// Invalidate removes key from both layers. Missing keys are not an error.
func (l *Layer) Invalidate(ctx context.Context, key string) {
	if l.connected {
		if err := l.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
			l.logger.Warn("redis DEL failed", zap.String("key", key), zap.Error(err))
		}
	}
	l.memory.delete(key)
}

// Stats describes the cache state for health reporting.
type Stats struct {
	Backend    string `json:"backend"`
	MemoryKeys int    `json:"memory_keys"`
}

func (l *Layer) Stats() Stats {
	backend := "memory"
	if l.connected {
		backend = "redis"
	}
	return Stats{Backend: backend, MemoryKeys: l.memory.len()}
}
