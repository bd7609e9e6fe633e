package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

func now() time.Time { return time.Now().UTC() }

func variantOf(d *data, ref domain.VariantRef) (*domain.Variant, error) {
	p, ok := d.products[ref.ProductID]
	if !ok {
		return nil, domain.NotFound("product", ref.ProductID)
	}
	for i := range p.Variants {
		if p.Variants[i].Color == ref.Color {
			return &p.Variants[i], nil
		}
	}
	return nil, domain.NotFound("variant", ref.String())
}

type variants struct{ v view }

func (r variants) Reserve(_ context.Context, ref domain.VariantRef, qty int) (out domain.Variant, err error) {
	err = r.v.do(func(d *data) error {
		vr, err := variantOf(d, ref)
		if err != nil {
			return err
		}
		if vr.Available() < qty {
			return &domain.StockError{Ref: ref, Requested: qty, Available: vr.Available()}
		}
		vr.Reserved += qty
		out = *vr
		return nil
	})
	return out, err
}

func (r variants) Release(_ context.Context, ref domain.VariantRef, qty int) (out domain.Variant, err error) {
	err = r.v.do(func(d *data) error {
		vr, err := variantOf(d, ref)
		if err != nil {
			return err
		}
		vr.Reserved = max(vr.Reserved-qty, 0)
		out = *vr
		return nil
	})
	return out, err
}

func (r variants) Commit(_ context.Context, ref domain.VariantRef, qty int) (out domain.Variant, err error) {
	err = r.v.do(func(d *data) error {
		vr, err := variantOf(d, ref)
		if err != nil {
			return err
		}
		if vr.Stock < qty || vr.Reserved < qty {
			return &domain.StockError{Ref: ref, Requested: qty, Available: min(vr.Stock, vr.Reserved)}
		}
		vr.Stock -= qty
		vr.Reserved -= qty
		out = *vr
		return nil
	})
	return out, err
}

func (r variants) Get(_ context.Context, ref domain.VariantRef) (out domain.Variant, err error) {
	err = r.v.do(func(d *data) error {
		vr, err := variantOf(d, ref)
		if err != nil {
			return err
		}
		out = *vr
		return nil
	})
	return out, err
}

type products struct{ v view }

func (r products) Get(_ context.Context, id string) (out *domain.Product, err error) {
	err = r.v.do(func(d *data) error {
		p, ok := d.products[id]
		if !ok {
			return domain.NotFound("product", id)
		}
		cp := *p
		cp.Variants = append([]domain.Variant(nil), p.Variants...)
		out = &cp
		return nil
	})
	return out, err
}

func (r products) Upsert(_ context.Context, p *domain.Product) error {
	return r.v.do(func(d *data) error {
		t := now()
		next := *p
		next.Variants = make([]domain.Variant, 0, len(p.Variants))
		next.CreatedAt, next.UpdatedAt = t, t
		old, exists := d.products[p.ID]
		if exists {
			next.CreatedAt = old.CreatedAt
		}
		kept := map[string]bool{}
		for _, v := range p.Variants {
			v.Reserved = 0
			if exists {
				if prev, ok := old.Variant(v.Color); ok {
					if v.Stock < prev.Reserved {
						return domain.NewValidationError("variants", "stock below reserved for "+v.Color)
					}
					v.Reserved = prev.Reserved
				}
			}
			kept[v.Color] = true
			next.Variants = append(next.Variants, v)
		}
		if exists {
			for _, prev := range old.Variants {
				if !kept[prev.Color] && prev.Reserved > 0 {
					return domain.NewValidationError("variants", "cannot drop reserved variant "+prev.Color)
				}
			}
		}
		d.products[p.ID] = &next
		*p = next
		p.Variants = append([]domain.Variant(nil), next.Variants...)
		return nil
	})
}

type carts struct{ v view }

func (r carts) FindByIdentity(_ context.Context, id domain.Identity) (out *domain.Cart, err error) {
	err = r.v.do(func(d *data) error {
		cid, ok := d.cartIdx[id]
		if !ok {
			return domain.NotFound("cart", id.String())
		}
		out = d.carts[cid].Clone()
		return nil
	})
	return out, err
}

func (r carts) Save(_ context.Context, c *domain.Cart) error {
	return r.v.do(func(d *data) error {
		if owner, ok := d.cartIdx[c.Identity]; ok && owner != c.ID {
			return domain.ErrWriteConflict
		}
		if prev, ok := d.carts[c.ID]; ok && prev.Identity != c.Identity {
			delete(d.cartIdx, prev.Identity)
		}
		d.carts[c.ID] = c.Clone()
		d.cartIdx[c.Identity] = c.ID
		return nil
	})
}

func (r carts) Delete(_ context.Context, cartID string) error {
	return r.v.do(func(d *data) error {
		if c, ok := d.carts[cartID]; ok {
			delete(d.cartIdx, c.Identity)
			delete(d.carts, cartID)
		}
		return nil
	})
}

type orders struct{ v view }

func (r orders) Create(_ context.Context, o *domain.Order) error {
	return r.v.do(func(d *data) error {
		if _, ok := d.orders[o.ID]; ok {
			return domain.ErrWriteConflict
		}
		d.orders[o.ID] = o.Clone()
		return nil
	})
}

func (r orders) Get(_ context.Context, id string) (out *domain.Order, err error) {
	err = r.v.do(func(d *data) error {
		o, ok := d.orders[id]
		if !ok {
			return domain.NotFound("order", id)
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

func (r orders) FindByCode(_ context.Context, code string) (out *domain.Order, err error) {
	err = r.v.do(func(d *data) error {
		var best *domain.Order
		for _, o := range d.orders {
			if !strings.EqualFold(o.RandomID, code) {
				continue
			}
			if best == nil || o.OrderNumber > best.OrderNumber {
				best = o
			}
		}
		if best == nil {
			return domain.NotFound("order", code)
		}
		out = best.Clone()
		return nil
	})
	return out, err
}

func (r orders) ApplyPatch(_ context.Context, id string, p domain.OrderPatch) (out *domain.Order, err error) {
	err = r.v.do(func(d *data) error {
		o, ok := d.orders[id]
		if !ok {
			return domain.NotFound("order", id)
		}
		o.Apply(p, now())
		out = o.Clone()
		return nil
	})
	return out, err
}

type counters struct{ v view }

func (r counters) Next(_ context.Context, name string) (n int64, err error) {
	err = r.v.do(func(d *data) error {
		d.counters[name]++
		n = d.counters[name]
		return nil
	})
	return n, err
}

type customers struct{ v view }

func (r customers) FindByEmail(_ context.Context, email string) (out *domain.Customer, err error) {
	err = r.v.do(func(d *data) error {
		id, ok := d.customerIdx[email]
		if !ok {
			return domain.NotFound("customer", email)
		}
		out = d.customers[id].Clone()
		return nil
	})
	return out, err
}

func (r customers) Create(_ context.Context, c *domain.Customer) error {
	return r.v.do(func(d *data) error {
		if _, ok := d.customerIdx[c.Email]; ok {
			return domain.ErrWriteConflict
		}
		d.customers[c.ID] = c.Clone()
		d.customerIdx[c.Email] = c.ID
		return nil
	})
}

func (r customers) Patch(_ context.Context, id string, ch domain.ProfileChanges) error {
	return r.v.do(func(d *data) error {
		c, ok := d.customers[id]
		if !ok {
			return domain.NotFound("customer", id)
		}
		c.Apply(ch)
		c.UpdatedAt = now()
		return nil
	})
}

func (r customers) AppendOrder(_ context.Context, id, orderID string) error {
	return r.v.do(func(d *data) error {
		c, ok := d.customers[id]
		if !ok {
			return domain.NotFound("customer", id)
		}
		c.OrderIDs = append(c.OrderIDs, orderID)
		c.UpdatedAt = now()
		return nil
	})
}

type wishlists struct{ v view }

func (r wishlists) FindByIdentity(_ context.Context, id domain.Identity) (out *domain.Wishlist, err error) {
	err = r.v.do(func(d *data) error {
		wid, ok := d.wishlistIdx[id]
		if !ok {
			return domain.NotFound("wishlist", id.String())
		}
		out = d.wishlists[wid].Clone()
		return nil
	})
	return out, err
}

func (r wishlists) Save(_ context.Context, w *domain.Wishlist) error {
	return r.v.do(func(d *data) error {
		if owner, ok := d.wishlistIdx[w.Identity]; ok && owner != w.ID {
			return domain.ErrWriteConflict
		}
		if prev, ok := d.wishlists[w.ID]; ok && prev.Identity != w.Identity {
			delete(d.wishlistIdx, prev.Identity)
		}
		d.wishlists[w.ID] = w.Clone()
		d.wishlistIdx[w.Identity] = w.ID
		return nil
	})
}

func (r wishlists) Delete(_ context.Context, id string) error {
	return r.v.do(func(d *data) error {
		if w, ok := d.wishlists[id]; ok {
			delete(d.wishlistIdx, w.Identity)
			delete(d.wishlists, id)
		}
		return nil
	})
}
