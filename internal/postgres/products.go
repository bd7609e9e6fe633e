package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

type productRepo struct{ repos }

func (r productRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	var (
		p                       domain.Product
		price, discount, markup string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, price::text, discount_pct::text, markup_pct::text, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &price, &discount, &markup, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("product", id)
	}
	if err != nil {
		return nil, translate(err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, translate(err)
	}
	if p.DiscountPct, err = decimal.NewFromString(discount); err != nil {
		return nil, translate(err)
	}
	if p.MarkupPct, err = decimal.NewFromString(markup); err != nil {
		return nil, translate(err)
	}

	rows, err := r.db.Query(ctx, `SELECT color, stock, reserved FROM variants WHERE product_id=$1 ORDER BY position, color`, id)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.Color, &v.Stock, &v.Reserved); err != nil {
			return nil, translate(err)
		}
		p.Variants = append(p.Variants, v)
	}
	return &p, translate(rows.Err())
}

// Upsert writes the catalog row and variant stock. reserved is never written
// from input: existing counters are kept and new variants start at zero.
func (r productRepo) Upsert(ctx context.Context, p *domain.Product) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO products(id, name, price, discount_pct, markup_pct)
			VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, price = EXCLUDED.price,
				discount_pct = EXCLUDED.discount_pct, markup_pct = EXCLUDED.markup_pct,
				updated_at = now()
			RETURNING created_at, updated_at`,
			p.ID, p.Name, p.Price.String(), p.DiscountPct.String(), p.MarkupPct.String(),
		).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `SELECT color, reserved FROM variants WHERE product_id=$1 FOR UPDATE`, p.ID)
		if err != nil {
			return err
		}
		reserved := map[string]int{}
		for rows.Next() {
			var color string
			var n int
			if err := rows.Scan(&color, &n); err != nil {
				rows.Close()
				return err
			}
			reserved[color] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for i := range p.Variants {
			v := &p.Variants[i]
			v.Reserved = reserved[v.Color]
			if v.Stock < v.Reserved {
				return domain.NewValidationError("variants", "stock below reserved for "+v.Color)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO variants(product_id, color, position, stock)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (product_id, color) DO UPDATE SET stock = EXCLUDED.stock, position = EXCLUDED.position`,
				p.ID, v.Color, i, v.Stock); err != nil {
				return err
			}
			delete(reserved, v.Color)
		}
		for color, n := range reserved {
			if n > 0 {
				return domain.NewValidationError("variants", "cannot drop reserved variant "+color)
			}
			if _, err := tx.Exec(ctx, `DELETE FROM variants WHERE product_id=$1 AND color=$2`, p.ID, color); err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err)
}
