// Package orders places orders from carts and serves them afterwards:
// numbering, shipping fees, contact checks, lookups by public code and the
// admin edit.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
)

// OrderCache keeps the latest order per public code.
type OrderCache interface {
	Get(ctx context.Context, code string) (*domain.Order, bool, error)
	Put(ctx context.Context, o *domain.Order) error
	Invalidate(ctx context.Context, code string) error
}

type Service struct {
	Store port.Store
	Cache OrderCache // optional
}

// GetByCode returns the most recent order carrying the code, reading the
// cache first and filling it on a miss.
func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.NewValidationError("code", "required")
	}
	if s.Cache != nil {
		o, ok, err := s.Cache.Get(ctx, code)
		if err != nil {
			log.Printf("orders: cache get %s: %v", code, err)
		} else if ok {
			return o, nil
		}
	}

	o, err := s.Store.Orders().FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.Put(ctx, o); err != nil {
			log.Printf("orders: cache put %s: %v", code, err)
		}
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("id", "required")
	}
	return s.Store.Orders().Get(ctx, id)
}

// Update applies an admin edit. Status only moves forward along
// placed -> shipping -> delivered. Changed contact fields are copied onto
// the customer profile of the order's email when one exists.
func (s *Service) Update(ctx context.Context, id string, p domain.OrderPatch) (*domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("id", "required")
	}
	p, err := validatePatch(p)
	if err != nil {
		return nil, err
	}
	if p.IsEmpty() {
		return nil, domain.NewValidationError("patch", "nothing to update")
	}

	var before, after *domain.Order
	err = port.WithRetry(ctx, s.Store, "order update", func(ctx context.Context, r port.Repositories) error {
		var err error
		if before, err = r.Orders().Get(ctx, id); err != nil {
			return err
		}
		if p.Status != nil && !CanTransition(before.Status, *p.Status) {
			return domain.NewValidationError("status", fmt.Sprintf("cannot move from %s to %s", before.Status, *p.Status))
		}
		if after, err = r.Orders().ApplyPatch(ctx, id, p); err != nil {
			return err
		}

		ch := p.ProfileChanges()
		if len(ch) == 0 {
			return nil
		}
		cust, err := r.Customers().FindByEmail(ctx, before.Contact.Email)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return r.Customers().Patch(ctx, cust.ID, ch)
	})
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx, after.RandomID); err != nil {
			log.Printf("orders: cache invalidate %s: %v", after.RandomID, err)
		}
	}
	return after, nil
}
