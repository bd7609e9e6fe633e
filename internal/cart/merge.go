package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/inventory"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
	"github.com/ariefcatur/go-storefront-checkout/internal/wishlist"
)

// Adjustment records a merged line that did not keep its full quantity.
// Kept is zero when the variant no longer exists.
type Adjustment struct {
	domain.VariantRef
	Requested int `json:"requested"`
	Kept      int `json:"kept"`
}

type MergeResult struct {
	Cart        *domain.Cart     `json:"cart"`
	Wishlist    *domain.Wishlist `json:"wishlist"`
	Adjustments []Adjustment     `json:"adjustments,omitempty"`
}

// Merger folds a guest session's cart and wishlist into the account that
// just logged in.
type Merger struct {
	Store port.Store
	Now   func() time.Time
}

func (m *Merger) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

// MergeOnLogin runs once per login, in one transaction:
//   - guest cart only: the cart is reassigned to the account as is.
//   - both carts: guest lines are added onto the account cart and the guest
//     cart is deleted. A merged line is clamped to the variant's stock and
//     the excess reservation released; lines of vanished variants are dropped.
//   - no guest cart: nothing changes.
func (m *Merger) MergeOnLogin(ctx context.Context, sessionID, userID string) (MergeResult, error) {
	guestID, accountID := domain.Session(sessionID), domain.Account(userID)
	verr := &domain.ValidationError{}
	if !guestID.Valid() {
		verr.Add("sessionId", "required")
	}
	if !accountID.Valid() {
		verr.Add("userId", "required")
	}
	if err := verr.OrNil(); err != nil {
		return MergeResult{}, err
	}

	var res MergeResult
	err := port.WithBackoff(ctx, m.Store, "merge on login", port.HotVariant, func(ctx context.Context, r port.Repositories) error {
		res = MergeResult{}
		now := m.now()

		guest, err := findCart(ctx, r, guestID)
		if err != nil {
			return err
		}
		account, err := findCart(ctx, r, accountID)
		if err != nil {
			return err
		}

		switch {
		case guest == nil && account == nil:
			res.Cart = domain.NewCart(accountID, now)
		case guest == nil:
			res.Cart = account
		case account == nil:
			guest.Identity = accountID
			guest.UpdatedAt = now
			if err := r.Carts().Save(ctx, guest); err != nil {
				return err
			}
			res.Cart = guest
		default:
			adj, err := fold(ctx, r, guest, account)
			if err != nil {
				return err
			}
			if err := r.Carts().Delete(ctx, guest.ID); err != nil {
				return err
			}
			account.UpdatedAt = now
			if err := r.Carts().Save(ctx, account); err != nil {
				return err
			}
			res.Cart, res.Adjustments = account, adj
		}

		res.Wishlist, err = wishlist.Merge(ctx, r, guestID, accountID, now)
		return err
	})
	if err != nil {
		return MergeResult{}, err
	}
	for _, a := range res.Adjustments {
		log.Printf("merge on login: user=%s %s requested=%d kept=%d", userID, a.VariantRef, a.Requested, a.Kept)
	}
	return res, nil
}

func findCart(ctx context.Context, r port.Repositories, id domain.Identity) (*domain.Cart, error) {
	c, err := r.Carts().FindByIdentity(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return c, err
}

// fold adds guest lines onto account. Both carts' reservations are already
// counted in the ledger, so only the clamped excess is released.
func fold(ctx context.Context, r port.Repositories, guest, account *domain.Cart) ([]Adjustment, error) {
	ledger := inventory.NewLedger(r.Variants())
	var adj []Adjustment
	for _, l := range SortedLines(guest) {
		v, err := ledger.Get(ctx, l.VariantRef)
		if errors.Is(err, domain.ErrNotFound) {
			adj = append(adj, Adjustment{VariantRef: l.VariantRef, Requested: l.Quantity})
			continue
		}
		if err != nil {
			return nil, err
		}
		merged := account.Quantity(l.VariantRef) + l.Quantity
		kept := min(merged, v.Stock)
		if excess := merged - kept; excess > 0 {
			if _, err := ledger.Release(ctx, l.VariantRef, excess); err != nil {
				return nil, err
			}
			adj = append(adj, Adjustment{VariantRef: l.VariantRef, Requested: merged, Kept: kept})
		}
		account.SetQuantity(l.VariantRef, kept)
	}
	return adj, nil
}
