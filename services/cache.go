package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// idem:order:create:{buyer_id}:{key} -> order id
	keyIdemOrderCreate = "idem:order:create:%d:%s"
	// analytics:{scope}:{filter hash} -> JSON result
	keyAnalytics = "analytics:%s:%s"
)

var ttlIdempotency = 24 * time.Hour

// NewRedisClient parses a redis:// URL and checks the server answers
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// IdempotencyStore remembers which order a client-supplied key produced
type IdempotencyStore interface {
	Lookup(ctx context.Context, buyerID uint, key string) (uint, bool, error)
	Remember(ctx context.Context, buyerID uint, key string, orderID uint) error
}

// RedisIdempotency keeps idempotency keys in Redis for 24 hours
type RedisIdempotency struct {
	rdb *redis.Client
}

// NewRedisIdempotency creates an idempotency store
func NewRedisIdempotency(rdb *redis.Client) *RedisIdempotency {
	return &RedisIdempotency{rdb: rdb}
}

// Lookup returns the order previously placed with key, if any
func (r *RedisIdempotency) Lookup(ctx context.Context, buyerID uint, key string) (uint, bool, error) {
	val, err := r.rdb.Get(ctx, fmt.Sprintf(keyIdemOrderCreate, buyerID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency value %q: %w", val, err)
	}
	return uint(id), true, nil
}

// Remember stores the order id for key unless another request got there first
func (r *RedisIdempotency) Remember(ctx context.Context, buyerID uint, key string, orderID uint) error {
	return r.rdb.SetNX(ctx, fmt.Sprintf(keyIdemOrderCreate, buyerID, key), orderID, ttlIdempotency).Err()
}

// AnalyticsCache stores computed analytics results for a short time
type AnalyticsCache interface {
	Get(ctx context.Context, scope string, filter interface{}, dest interface{}) (bool, error)
	Set(ctx context.Context, scope string, filter interface{}, value interface{}) error
}

// RedisAnalyticsCache is an AnalyticsCache backed by Redis
type RedisAnalyticsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisAnalyticsCache creates an analytics cache with the given TTL
func NewRedisAnalyticsCache(rdb *redis.Client, ttl time.Duration) *RedisAnalyticsCache {
	return &RedisAnalyticsCache{rdb: rdb, ttl: ttl}
}

// analyticsCacheKey derives a deterministic key from the scope and filter
func analyticsCacheKey(scope string, filter interface{}) string {
	data, _ := json.Marshal(filter)
	hash := md5.Sum(data)
	return fmt.Sprintf(keyAnalytics, scope, hex.EncodeToString(hash[:]))
}

// Get decodes a cached value into dest; a miss returns false
func (c *RedisAnalyticsCache) Get(ctx context.Context, scope string, filter interface{}, dest interface{}) (bool, error) {
	val, err := c.rdb.Get(ctx, analyticsCacheKey(scope, filter)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under the scope and filter
func (c *RedisAnalyticsCache) Set(ctx context.Context, scope string, filter interface{}, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, analyticsCacheKey(scope, filter), data, c.ttl).Err()
}
