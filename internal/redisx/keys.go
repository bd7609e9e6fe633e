package redisx

import "time"

const (
	// Checkout idempotency: idem:checkout:{key} -> order id ("pending" while running)
	KeyIdemCheckout = "idem:checkout:%s"

	// Latest order per public code: order:code:{CODE} -> order JSON
	KeyOrderByCode = "order:code:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
