package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 16
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	price        NUMERIC(12,2) NOT NULL CHECK (price >= 0),
	discount_pct NUMERIC(5,2) NOT NULL DEFAULT 0,
	markup_pct   NUMERIC(7,2) NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS variants (
	product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	color      TEXT NOT NULL,
	position   INT  NOT NULL DEFAULT 0,
	stock      INT  NOT NULL,
	reserved   INT  NOT NULL DEFAULT 0,
	PRIMARY KEY (product_id, color),
	CONSTRAINT variants_counters CHECK (reserved >= 0 AND reserved <= stock)
);

CREATE TABLE IF NOT EXISTS carts (
	id            TEXT PRIMARY KEY,
	identity_kind TEXT NOT NULL,
	identity_key  TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (identity_kind, identity_key)
);

CREATE TABLE IF NOT EXISTS cart_lines (
	cart_id    TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
	product_id TEXT NOT NULL,
	color      TEXT NOT NULL,
	quantity   INT  NOT NULL CHECK (quantity >= 1),
	position   INT  NOT NULL,
	PRIMARY KEY (cart_id, product_id, color)
);

CREATE TABLE IF NOT EXISTS counters (
	name TEXT PRIMARY KEY,
	seq  BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id             TEXT PRIMARY KEY,
	order_number   BIGINT NOT NULL UNIQUE,
	random_id      TEXT NOT NULL,
	identity_kind  TEXT NOT NULL,
	identity_key   TEXT NOT NULL,
	lines          JSONB NOT NULL,
	subtotal       NUMERIC(12,2) NOT NULL,
	shipping_cost  NUMERIC(12,2) NOT NULL,
	total          NUMERIC(12,2) NOT NULL,
	email          TEXT NOT NULL,
	first_name     TEXT NOT NULL,
	last_name      TEXT NOT NULL,
	address        TEXT NOT NULL,
	phone          TEXT NOT NULL,
	city           TEXT NOT NULL,
	governorate    TEXT NOT NULL,
	payment_method TEXT NOT NULL,
	status         TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS orders_random_id_idx ON orders (upper(random_id));

CREATE TABLE IF NOT EXISTS customers (
	id          TEXT PRIMARY KEY,
	email       TEXT NOT NULL UNIQUE,
	first_name  TEXT NOT NULL DEFAULT '',
	last_name   TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	governorate TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS customer_orders (
	seq         BIGSERIAL PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
	order_id    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS wishlists (
	id            TEXT PRIMARY KEY,
	identity_kind TEXT NOT NULL,
	identity_key  TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (identity_kind, identity_key)
);

CREATE TABLE IF NOT EXISTS wishlist_items (
	wishlist_id TEXT NOT NULL REFERENCES wishlists(id) ON DELETE CASCADE,
	product_id  TEXT NOT NULL,
	position    INT  NOT NULL,
	PRIMARY KEY (wishlist_id, product_id)
);
`

// Migrate creates the schema. Concurrent callers serialize on an advisory lock.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(72450011)`); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, schema); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
