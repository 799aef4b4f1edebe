package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const jwksCacheKeyPrefix = "drinks:jwks:"

// RedisKeySetCache stores raw JWKS documents in Redis so that replicas share
// a single fetch per TTL.
type RedisKeySetCache struct {
	client *redis.Client
}

// NewRedisKeySetCache creates a JWKS cache backed by client
func NewRedisKeySetCache(client *redis.Client) *RedisKeySetCache {
	return &RedisKeySetCache{client: client}
}

// Get returns the cached document, or nil on a miss
func (c *RedisKeySetCache) Get(ctx context.Context, jwksURL string) ([]byte, error) {
	doc, err := c.client.Get(ctx, jwksCacheKeyPrefix+jwksURL).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached JWKS: %w", err)
	}
	return doc, nil
}

// Set stores the document with the given TTL
func (c *RedisKeySetCache) Set(ctx context.Context, jwksURL string, doc []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, jwksCacheKeyPrefix+jwksURL, doc, ttl).Err(); err != nil {
		return fmt.Errorf("set cached JWKS: %w", err)
	}
	return nil
}

// NewRedisClient parses redisURL and verifies the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
