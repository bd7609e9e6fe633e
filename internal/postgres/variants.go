package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

type variantRepo struct{ repos }

// Each ledger call is one conditional UPDATE; a miss is looked up afterwards
// only to tell an unknown variant from a stock shortfall.

func (r variantRepo) Reserve(ctx context.Context, ref domain.VariantRef, qty int) (domain.Variant, error) {
	v := domain.Variant{Color: ref.Color}
	err := r.db.QueryRow(ctx, `
		UPDATE variants SET reserved = reserved + $3
		WHERE product_id = $1 AND color = $2 AND stock - reserved >= $3
		RETURNING stock, reserved`, ref.ProductID, ref.Color, qty).Scan(&v.Stock, &v.Reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.shortfall(ctx, ref, qty, domain.Variant.Available)
	}
	return v, translate(err)
}

func (r variantRepo) Release(ctx context.Context, ref domain.VariantRef, qty int) (domain.Variant, error) {
	v := domain.Variant{Color: ref.Color}
	err := r.db.QueryRow(ctx, `
		UPDATE variants SET reserved = GREATEST(reserved - $3, 0)
		WHERE product_id = $1 AND color = $2
		RETURNING stock, reserved`, ref.ProductID, ref.Color, qty).Scan(&v.Stock, &v.Reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Variant{}, domain.NotFound("variant", ref.String())
	}
	return v, translate(err)
}

func (r variantRepo) Commit(ctx context.Context, ref domain.VariantRef, qty int) (domain.Variant, error) {
	v := domain.Variant{Color: ref.Color}
	err := r.db.QueryRow(ctx, `
		UPDATE variants SET stock = stock - $3, reserved = reserved - $3
		WHERE product_id = $1 AND color = $2 AND stock >= $3 AND reserved >= $3
		RETURNING stock, reserved`, ref.ProductID, ref.Color, qty).Scan(&v.Stock, &v.Reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.shortfall(ctx, ref, qty, func(cur domain.Variant) int { return min(cur.Stock, cur.Reserved) })
	}
	return v, translate(err)
}

func (r variantRepo) Get(ctx context.Context, ref domain.VariantRef) (domain.Variant, error) {
	v := domain.Variant{Color: ref.Color}
	err := r.db.QueryRow(ctx, `SELECT stock, reserved FROM variants WHERE product_id=$1 AND color=$2`,
		ref.ProductID, ref.Color).Scan(&v.Stock, &v.Reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Variant{}, domain.NotFound("variant", ref.String())
	}
	return v, translate(err)
}

func (r variantRepo) shortfall(ctx context.Context, ref domain.VariantRef, qty int, available func(domain.Variant) int) (domain.Variant, error) {
	cur, err := r.Get(ctx, ref)
	if err != nil {
		return domain.Variant{}, err
	}
	return domain.Variant{}, &domain.StockError{Ref: ref, Requested: qty, Available: available(cur)}
}
