package presence

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Cache mirrors presence entries into an external store for recovery and
// inspection. It is write-only from the directory's perspective and best
// effort: the directory stays authoritative without it.
type Cache interface {
	Put(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, id string) error
}

// RedisCache mirrors entries under player:{id} keys.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Put(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, playerKey(entry.ID), payload, 0).Err()
}

func (c *RedisCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, playerKey(id)).Err()
}

func playerKey(id string) string {
	return "player:" + id
}
