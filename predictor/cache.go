package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"premiumcat/ml"
)

// Outcome is what the classifier produced for one feature row.
type Outcome struct {
	Category      string             `json:"predicted_category"`
	Probabilities map[string]float64 `json:"class_probabilities"`
}

// Cache memoizes outcomes by feature row. Implementations treat backend
// failures as misses.
type Cache interface {
	Get(ctx context.Context, key string) (Outcome, bool)
	Set(ctx context.Context, key string, outcome Outcome)
}

// CacheKey renders a feature row losslessly; equal rows give equal keys.
func CacheKey(f ml.Features) string {
	var b strings.Builder
	for i, name := range ml.FeatureNames() {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(name)
		b.WriteByte('=')
		switch v := f.Values()[i].(type) {
		case float64:
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		case int:
			b.WriteString(strconv.Itoa(v))
		case string:
			b.WriteString(strconv.Quote(v))
		}
	}
	return b.String()
}

type LRUCache struct {
	lru *expirable.LRU[string, Outcome]
}

// NewLRUCache keeps at most size outcomes, each for at most ttl (0 means no expiry).
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = 1024
	}
	return &LRUCache{lru: expirable.NewLRU[string, Outcome](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, key string) (Outcome, bool) {
	return c.lru.Get(key)
}

func (c *LRUCache) Set(_ context.Context, key string, outcome Outcome) {
	c.lru.Add(key, outcome)
}

func (c *LRUCache) Len() int {
	return c.lru.Len()
}

const redisKeyPrefix = "premiumcat:prediction:"

// RedisCache shares outcomes between service instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Outcome, bool) {
	payload, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis cache get failed", zap.Error(err))
		}
		return Outcome{}, false
	}
	var outcome Outcome
	if err := json.Unmarshal(payload, &outcome); err != nil {
		c.logger.Warn("redis cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return Outcome{}, false
	}
	return outcome, true
}

func (c *RedisCache) Set(ctx context.Context, key string, outcome Outcome) {
	payload, err := json.Marshal(outcome)
	if err != nil {
		c.logger.Warn("redis cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("redis cache set failed", zap.Error(err))
	}
}

// Ping checks connectivity at startup.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
