package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

// OrderCache stores the latest order for each public code as JSON.
type OrderCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func (c *OrderCache) key(code string) string {
	return fmt.Sprintf(KeyOrderByCode, strings.ToUpper(code))
}

func (c *OrderCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return TTLOrderCache
}

func (c *OrderCache) Get(ctx context.Context, code string) (*domain.Order, bool, error) {
	b, err := c.RDB.Get(ctx, c.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var o domain.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, false, fmt.Errorf("decode cached order %s: %w", code, err)
	}
	return &o, true, nil
}

func (c *OrderCache) Put(ctx context.Context, o *domain.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, c.key(o.RandomID), b, c.ttl()).Err()
}

func (c *OrderCache) Invalidate(ctx context.Context, code string) error {
	return c.RDB.Del(ctx, c.key(code)).Err()
}
