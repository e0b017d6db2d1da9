package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const translationPrefix = "readaloud:translation:"

// TranslationCache stores finished translations keyed by a content hash.
type TranslationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTranslationCache(client *redis.Client, ttl time.Duration) *TranslationCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TranslationCache{client: client, ttl: ttl}
}

// Get reports ok=false without error on a cache miss.
func (c *TranslationCache) Get(ctx context.Context, key string) (string, bool, error) {
	if c == nil || c.client == nil || key == "" {
		return "", false, nil
	}
	value, err := c.client.Get(ctx, translationPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (c *TranslationCache) Set(ctx context.Context, key, value string) error {
	if c == nil || c.client == nil || key == "" || value == "" {
		return nil
	}
	return c.client.Set(ctx, translationPrefix+key, value, c.ttl).Err()
}
