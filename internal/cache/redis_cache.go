package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/rotation-optimizer/internal/teammates"
)

const (
	relationPrefix     = "relation:"
	DefaultRelationTTL = 24 * time.Hour
)

// RedisCache shares relations between processes
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisCache creates a relation cache on an existing client. A ttl of
// zero uses DefaultRelationTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultRelationTTL
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// NewRedisClient parses a redis:// URL into a client
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

func fullKey(key string) string {
	return relationPrefix + key
}

// Load fetches a relation. redis.Nil is reported as a miss.
func (c *RedisCache) Load(ctx context.Context, key string) (*teammates.Relation, bool, error) {
	data, err := c.client.Get(ctx, fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get relation from cache: %w", err)
	}

	rel := teammates.NewRelation()
	if err := rel.UnmarshalBinary(data); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached relation: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key": fullKey(key),
		"pairs":     rel.Len(),
	}).Debug("Retrieved relation from cache")
	return rel, true, nil
}

// Store writes a relation with the configured expiration
func (c *RedisCache) Store(ctx context.Context, key string, rel *teammates.Relation) error {
	data, err := rel.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode relation: %w", err)
	}
	if err := c.client.Set(ctx, fullKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set relation in cache: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":  fullKey(key),
		"expiration": c.ttl,
		"pairs":      rel.Len(),
	}).Debug("Cached relation")
	return nil
}

// Delete drops a cached relation
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, fullKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete relation from cache: %w", err)
	}
	c.logger.WithField("cache_key", fullKey(key)).Debug("Deleted relation from cache")
	return nil
}

// Ping reports whether redis is reachable
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
