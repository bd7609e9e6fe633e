package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

type customerRepo struct{ repos }

func (r customerRepo) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, address, phone, city, governorate, created_at, updated_at
		FROM customers WHERE email=$1`+r.forUpdate(), email).
		Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Address, &c.Phone, &c.City, &c.Governorate,
			&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("customer", email)
	}
	if err != nil {
		return nil, translate(err)
	}
	rows, err := r.db.Query(ctx, `SELECT order_id FROM customer_orders WHERE customer_id=$1 ORDER BY seq`, c.ID)
	if err != nil {
		return nil, translate(err)
	}
	if c.OrderIDs, err = pgx.CollectRows(rows, pgx.RowTo[string]); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r customerRepo) Create(ctx context.Context, c *domain.Customer) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO customers(id, email, first_name, last_name, address, phone, city, governorate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.Email, c.FirstName, c.LastName, c.Address, c.Phone, c.City, c.Governorate, c.CreatedAt, c.UpdatedAt)
	return translate(err)
}

func (r customerRepo) Patch(ctx context.Context, id string, ch domain.ProfileChanges) error {
	if len(ch) == 0 {
		return nil
	}
	set := make(map[string]any, len(ch))
	for f, v := range ch {
		set[string(f)] = v
	}
	sql, args, err := psql.Update("customers").
		SetMap(set).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build customer patch: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() != 1 {
		return domain.NotFound("customer", id)
	}
	return nil
}

func (r customerRepo) AppendOrder(ctx context.Context, id, orderID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE customers SET updated_at = now() WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() != 1 {
		return domain.NotFound("customer", id)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO customer_orders(customer_id, order_id) VALUES ($1, $2)`, id, orderID)
	return translate(err)
}
