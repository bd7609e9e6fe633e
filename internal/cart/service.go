// Package cart keeps per-identity carts in step with the inventory ledger:
// every quantity change and its ledger call commit in the same transaction.
package cart

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/inventory"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
)

// Result is what a cart mutation returns. LimitReached is the soft signal
// for a reservation the ledger could not grant; the cart is then unchanged
// and Available says how many more units could be added.
type Result struct {
	Cart         *domain.Cart `json:"cart"`
	LimitReached bool         `json:"limitReached"`
	Available    int          `json:"available,omitempty"`
}

type Service struct {
	Store port.Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func validate(id domain.Identity, ref domain.VariantRef, qty int) error {
	verr := &domain.ValidationError{}
	if !id.Valid() {
		verr.Add("identity", "session or account id is required")
	}
	if !ref.Valid() {
		verr.Add("variant", "product id and color are required")
	}
	if qty <= 0 {
		verr.Add("quantity", "must be positive")
	}
	return verr.OrNil()
}

// load returns the identity's cart, or a new unsaved one.
func (s *Service) load(ctx context.Context, r port.Repositories, id domain.Identity) (*domain.Cart, error) {
	c, err := r.Carts().FindByIdentity(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewCart(id, s.now()), nil
	}
	return c, err
}

func (s *Service) save(ctx context.Context, r port.Repositories, c *domain.Cart) error {
	c.UpdatedAt = s.now()
	return r.Carts().Save(ctx, c)
}

// AddLine reserves qty units and adds them to the line for ref, creating the
// cart on first use.
func (s *Service) AddLine(ctx context.Context, id domain.Identity, ref domain.VariantRef, qty int) (Result, error) {
	if err := validate(id, ref, qty); err != nil {
		return Result{}, err
	}
	var res Result
	err := port.WithBackoff(ctx, s.Store, "cart add", port.HotVariant, func(ctx context.Context, r port.Repositories) error {
		c, err := s.load(ctx, r, id)
		if err != nil {
			return err
		}
		res, err = s.reserveInto(ctx, r, c, ref, qty)
		return err
	})
	return res, err
}

func (s *Service) reserveInto(ctx context.Context, r port.Repositories, c *domain.Cart, ref domain.VariantRef, qty int) (Result, error) {
	_, err := inventory.NewLedger(r.Variants()).Reserve(ctx, ref, qty)
	var se *domain.StockError
	if errors.As(err, &se) {
		return Result{Cart: c, LimitReached: true, Available: se.Available}, nil
	}
	if err != nil {
		return Result{}, err
	}
	c.SetQuantity(ref, c.Quantity(ref)+qty)
	if err := s.save(ctx, r, c); err != nil {
		return Result{}, err
	}
	return Result{Cart: c}, nil
}

// ChangeQuantity moves an existing line by +1 or -1. Going below one unit
// drops the line; either way the ledger sees exactly one matching call.
func (s *Service) ChangeQuantity(ctx context.Context, id domain.Identity, ref domain.VariantRef, delta int) (Result, error) {
	if delta != 1 && delta != -1 {
		return Result{}, domain.NewValidationError("delta", "must be 1 or -1")
	}
	if err := validate(id, ref, 1); err != nil {
		return Result{}, err
	}
	var res Result
	err := port.WithBackoff(ctx, s.Store, "cart change quantity", port.HotVariant, func(ctx context.Context, r port.Repositories) error {
		c, err := r.Carts().FindByIdentity(ctx, id)
		if err != nil {
			return err
		}
		cur := c.Quantity(ref)
		if cur == 0 {
			return domain.NotFound("cart line", ref.String())
		}
		if delta > 0 {
			res, err = s.reserveInto(ctx, r, c, ref, 1)
			return err
		}
		if _, err := inventory.NewLedger(r.Variants()).Release(ctx, ref, 1); err != nil {
			return err
		}
		c.SetQuantity(ref, cur-1)
		if err := s.save(ctx, r, c); err != nil {
			return err
		}
		res = Result{Cart: c}
		return nil
	})
	return res, err
}

func (s *Service) IncrementLine(ctx context.Context, id domain.Identity, ref domain.VariantRef) (Result, error) {
	return s.ChangeQuantity(ctx, id, ref, 1)
}

func (s *Service) DecrementLine(ctx context.Context, id domain.Identity, ref domain.VariantRef) (Result, error) {
	return s.ChangeQuantity(ctx, id, ref, -1)
}

// RemoveLine releases the whole line. Removing an absent line is a no-op.
func (s *Service) RemoveLine(ctx context.Context, id domain.Identity, ref domain.VariantRef) (*domain.Cart, error) {
	if err := validate(id, ref, 1); err != nil {
		return nil, err
	}
	var out *domain.Cart
	err := port.WithBackoff(ctx, s.Store, "cart remove", port.HotVariant, func(ctx context.Context, r port.Repositories) error {
		c, err := s.load(ctx, r, id)
		if err != nil {
			return err
		}
		out = c
		qty := c.Quantity(ref)
		if qty == 0 {
			return nil
		}
		if _, err := inventory.NewLedger(r.Variants()).Release(ctx, ref, qty); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		c.SetQuantity(ref, 0)
		return s.save(ctx, r, c)
	})
	return out, err
}

// Empty releases every line and keeps the (now empty) cart.
func (s *Service) Empty(ctx context.Context, id domain.Identity) (*domain.Cart, error) {
	if !id.Valid() {
		return nil, domain.NewValidationError("identity", "session or account id is required")
	}
	var out *domain.Cart
	err := port.WithBackoff(ctx, s.Store, "cart empty", port.HotVariant, func(ctx context.Context, r port.Repositories) error {
		c, err := r.Carts().FindByIdentity(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			out = domain.NewCart(id, s.now())
			return nil
		}
		if err != nil {
			return err
		}
		ledger := inventory.NewLedger(r.Variants())
		for _, l := range SortedLines(c) {
			if _, err := ledger.Release(ctx, l.VariantRef, l.Quantity); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}
		c.Clear()
		out = c
		return s.save(ctx, r, c)
	})
	return out, err
}

// Get returns the identity's cart; an identity without one gets an empty,
// unsaved cart.
func (s *Service) Get(ctx context.Context, id domain.Identity) (*domain.Cart, error) {
	if !id.Valid() {
		return nil, domain.NewValidationError("identity", "session or account id is required")
	}
	c, err := s.Store.Carts().FindByIdentity(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewCart(id, s.now()), nil
	}
	return c, err
}

// SortedLines returns the lines in (product, color) order, the order in
// which variants are touched so concurrent transactions lock rows alike.
func SortedLines(c *domain.Cart) []domain.CartLine {
	lines := append([]domain.CartLine(nil), c.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].VariantRef.Less(lines[j].VariantRef) })
	return lines
}
