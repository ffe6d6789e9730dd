// Package cache provides the best-effort read cache behind the payment
// status polling endpoint. Clients poll every few seconds; serving repeat
// reads from redis keeps that loop off the primary store.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vhgminh/bhxh-portal/modules/payment/domain/ports"
	"github.com/vhgminh/bhxh-portal/modules/payment/domain/types"
)

type RedisStatusCache struct {
	client *redis.Client
}

func NewRedisStatusCache(addr string) *RedisStatusCache {
	return &RedisStatusCache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

var _ ports.StatusCache = (*RedisStatusCache)(nil)

func key(id string) string { return "payment:status:" + id }

func (c *RedisStatusCache) Get(ctx context.Context, id string) (types.Payment, bool) {
	raw, err := c.client.Get(ctx, key(id)).Result()
	if err != nil {
		return types.Payment{}, false
	}
	var p types.Payment
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return types.Payment{}, false
	}
	return p, true
}

func (c *RedisStatusCache) Set(ctx context.Context, p types.Payment, ttl time.Duration) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	// Best effort; a failed write only costs the next poll a store read.
	_ = c.client.Set(ctx, key(p.ID), raw, ttl).Err()
}
