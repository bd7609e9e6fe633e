package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

type cartRepo struct{ repos }

func (r cartRepo) FindByIdentity(ctx context.Context, id domain.Identity) (*domain.Cart, error) {
	c := domain.Cart{Identity: id, Lines: []domain.CartLine{}}
	err := r.db.QueryRow(ctx, `
		SELECT id, created_at, updated_at FROM carts
		WHERE identity_kind=$1 AND identity_key=$2`+r.forUpdate(),
		string(id.Kind()), id.Key()).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("cart", id.String())
	}
	if err != nil {
		return nil, translate(err)
	}

	rows, err := r.db.Query(ctx, `SELECT product_id, color, quantity FROM cart_lines WHERE cart_id=$1 ORDER BY position`, c.ID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ProductID, &l.Color, &l.Quantity); err != nil {
			return nil, translate(err)
		}
		c.Lines = append(c.Lines, l)
	}
	return &c, translate(rows.Err())
}

// Save replaces the cart row and its lines. Another cart already owning the
// identity surfaces as a unique violation, i.e. domain.ErrWriteConflict.
func (r cartRepo) Save(ctx context.Context, c *domain.Cart) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO carts(id, identity_kind, identity_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				identity_kind = EXCLUDED.identity_kind,
				identity_key = EXCLUDED.identity_key,
				updated_at = EXCLUDED.updated_at`,
			c.ID, string(c.Identity.Kind()), c.Identity.Key(), c.CreatedAt, c.UpdatedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id=$1`, c.ID); err != nil {
			return err
		}
		for i, l := range c.Lines {
			if _, err := tx.Exec(ctx, `
				INSERT INTO cart_lines(cart_id, product_id, color, quantity, position)
				VALUES ($1, $2, $3, $4, $5)`, c.ID, l.ProductID, l.Color, l.Quantity, i); err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err)
}

func (r cartRepo) Delete(ctx context.Context, cartID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM carts WHERE id=$1`, cartID)
	return translate(err)
}

type wishlistRepo struct{ repos }

func (r wishlistRepo) FindByIdentity(ctx context.Context, id domain.Identity) (*domain.Wishlist, error) {
	w := domain.Wishlist{Identity: id, ProductIDs: []string{}}
	err := r.db.QueryRow(ctx, `
		SELECT id, created_at, updated_at FROM wishlists
		WHERE identity_kind=$1 AND identity_key=$2`+r.forUpdate(),
		string(id.Kind()), id.Key()).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("wishlist", id.String())
	}
	if err != nil {
		return nil, translate(err)
	}

	rows, err := r.db.Query(ctx, `SELECT product_id FROM wishlist_items WHERE wishlist_id=$1 ORDER BY position`, w.ID)
	if err != nil {
		return nil, translate(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, translate(err)
	}
	w.ProductIDs = append(w.ProductIDs, ids...)
	return &w, nil
}

func (r wishlistRepo) Save(ctx context.Context, w *domain.Wishlist) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO wishlists(id, identity_kind, identity_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				identity_kind = EXCLUDED.identity_kind,
				identity_key = EXCLUDED.identity_key,
				updated_at = EXCLUDED.updated_at`,
			w.ID, string(w.Identity.Kind()), w.Identity.Key(), w.CreatedAt, w.UpdatedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM wishlist_items WHERE wishlist_id=$1`, w.ID); err != nil {
			return err
		}
		for i, pid := range w.ProductIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO wishlist_items(wishlist_id, product_id, position) VALUES ($1, $2, $3)`,
				w.ID, pid, i); err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err)
}

func (r wishlistRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM wishlists WHERE id=$1`, id)
	return translate(err)
}
