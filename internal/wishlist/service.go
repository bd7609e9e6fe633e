// Package wishlist keeps a per-identity set of product ids. Nothing here
// touches inventory.
package wishlist

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
)

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

func find(ctx context.Context, r port.Repositories, id domain.Identity, now time.Time) (*domain.Wishlist, error) {
	w, err := r.Wishlists().FindByIdentity(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewWishlist(id, now), nil
	}
	return w, err
}

func (s *Service) Get(ctx context.Context, id domain.Identity) (*domain.Wishlist, error) {
	if !id.Valid() {
		return nil, domain.NewValidationError("identity", "session or account id is required")
	}
	return find(ctx, s.Store, id, s.now())
}

// Toggle adds the product when absent and removes it otherwise. Only known
// products can be added.
func (s *Service) Toggle(ctx context.Context, id domain.Identity, productID string) (*domain.Wishlist, bool, error) {
	productID = strings.TrimSpace(productID)
	verr := &domain.ValidationError{}
	if !id.Valid() {
		verr.Add("identity", "session or account id is required")
	}
	if productID == "" {
		verr.Add("productId", "required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, false, err
	}

	var (
		out   *domain.Wishlist
		added bool
	)
	err := port.WithRetry(ctx, s.Store, "wishlist toggle", func(ctx context.Context, r port.Repositories) error {
		w, err := find(ctx, r, id, s.now())
		if err != nil {
			return err
		}
		if !w.Has(productID) {
			if _, err := r.Products().Get(ctx, productID); err != nil {
				return err
			}
		}
		added = w.Toggle(productID)
		w.UpdatedAt = s.now()
		out = w
		return r.Wishlists().Save(ctx, w)
	})
	return out, added, err
}

func (s *Service) Empty(ctx context.Context, id domain.Identity) (*domain.Wishlist, error) {
	if !id.Valid() {
		return nil, domain.NewValidationError("identity", "session or account id is required")
	}
	var out *domain.Wishlist
	err := port.WithRetry(ctx, s.Store, "wishlist empty", func(ctx context.Context, r port.Repositories) error {
		w, err := r.Wishlists().FindByIdentity(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			out = domain.NewWishlist(id, s.now())
			return nil
		}
		if err != nil {
			return err
		}
		w.Clear()
		w.UpdatedAt = s.now()
		out = w
		return r.Wishlists().Save(ctx, w)
	})
	return out, err
}

// Merge folds the guest wishlist into the account one as a set union and
// deletes the guest list. With no account list the guest list is simply
// reassigned. It runs on the caller's repositories so it can share the
// login transaction.
func Merge(ctx context.Context, r port.Repositories, guest, account domain.Identity, now time.Time) (*domain.Wishlist, error) {
	g, err := r.Wishlists().FindByIdentity(ctx, guest)
	if errors.Is(err, domain.ErrNotFound) {
		g = nil
	} else if err != nil {
		return nil, err
	}
	a, err := r.Wishlists().FindByIdentity(ctx, account)
	if errors.Is(err, domain.ErrNotFound) {
		a = nil
	} else if err != nil {
		return nil, err
	}

	switch {
	case g == nil && a == nil:
		return domain.NewWishlist(account, now), nil
	case g == nil:
		return a, nil
	case a == nil:
		g.Identity = account
		g.UpdatedAt = now
		return g, r.Wishlists().Save(ctx, g)
	}
	a.Union(g)
	a.UpdatedAt = now
	if err := r.Wishlists().Delete(ctx, g.ID); err != nil {
		return nil, err
	}
	return a, r.Wishlists().Save(ctx, a)
}
