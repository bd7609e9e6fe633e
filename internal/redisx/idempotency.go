package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pending = "pending"

// Idempotency claims checkout keys with SETNX so only one request per key
// creates an order.
type Idempotency struct {
	RDB *redis.Client
	TTL time.Duration
}

func (i *Idempotency) ttl() time.Duration {
	if i.TTL > 0 {
		return i.TTL
	}
	return TTLIdempotency
}

func (i *Idempotency) Begin(ctx context.Context, key string) (string, bool, error) {
	k := fmt.Sprintf(KeyIdemCheckout, key)
	ok, err := i.RDB.SetNX(ctx, k, pending, i.ttl()).Result()
	if err != nil || ok {
		return "", ok, err
	}
	v, err := i.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; let the caller try again
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if v == pending {
		v = ""
	}
	return v, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, key, orderID string) error {
	return i.RDB.Set(ctx, fmt.Sprintf(KeyIdemCheckout, key), orderID, i.ttl()).Err()
}

func (i *Idempotency) Abort(ctx context.Context, key string) error {
	return i.RDB.Del(ctx, fmt.Sprintf(KeyIdemCheckout, key)).Err()
}
