package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

type orderRepo struct{ repos }

const orderColumns = `id, order_number, random_id, identity_kind, identity_key, lines,
	subtotal::text, shipping_cost::text, total::text,
	email, first_name, last_name, address, phone, city, governorate, payment_method,
	status, created_at, updated_at`

func (r orderRepo) Create(ctx context.Context, o *domain.Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("encode order lines: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO orders(id, order_number, random_id, identity_kind, identity_key, lines,
			subtotal, shipping_cost, total,
			email, first_name, last_name, address, phone, city, governorate, payment_method,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::numeric, $8::numeric, $9::numeric,
			$10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		o.ID, o.OrderNumber, o.RandomID, string(o.Identity.Kind()), o.Identity.Key(), string(lines),
		o.Subtotal.String(), o.ShippingCost.String(), o.Total.String(),
		o.Contact.Email, o.Contact.FirstName, o.Contact.LastName, o.Contact.Address,
		o.Contact.Phone, o.Contact.City, o.Contact.Governorate, string(o.Contact.PaymentMethod),
		string(o.Status), o.CreatedAt, o.UpdatedAt)
	return translate(err)
}

func (r orderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("order", id)
	}
	return o, translate(err)
}

func (r orderRepo) FindByCode(ctx context.Context, code string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE upper(random_id) = upper($1)
		ORDER BY order_number DESC LIMIT 1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("order", code)
	}
	return o, translate(err)
}

func (r orderRepo) ApplyPatch(ctx context.Context, id string, p domain.OrderPatch) (*domain.Order, error) {
	if p.IsEmpty() {
		return r.Get(ctx, id)
	}
	sql, args, err := psql.Update("orders").
		SetMap(p.Columns()).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + orderColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build order patch: %w", err)
	}
	o, err := scanOrder(r.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("order", id)
	}
	return o, translate(err)
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                         domain.Order
		kind, key                 string
		lines                     []byte
		subtotal, shipping, total string
		payment, status           string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.RandomID, &kind, &key, &lines,
		&subtotal, &shipping, &total,
		&o.Contact.Email, &o.Contact.FirstName, &o.Contact.LastName, &o.Contact.Address,
		&o.Contact.Phone, &o.Contact.City, &o.Contact.Governorate, &payment,
		&status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if o.Identity, err = domain.ParseIdentity(kind, key); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("decode order lines: %w", err)
	}
	for dst, src := range map[*decimal.Decimal]string{&o.Subtotal: subtotal, &o.ShippingCost: shipping, &o.Total: total} {
		if *dst, err = decimal.NewFromString(src); err != nil {
			return nil, err
		}
	}
	o.Contact.PaymentMethod = domain.PaymentMethod(payment)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

type counterRepo struct{ repos }

func (r counterRepo) Next(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO counters(name, seq) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq`, name).Scan(&seq)
	return seq, translate(err)
}
