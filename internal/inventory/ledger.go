// Package inventory owns the stock and reserved counters of every product
// variant. All counter changes go through Ledger.
package inventory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
)

// Ledger validates requests and forwards them to the store's single-statement
// conditional updates. Build one per repository set: inside a transaction,
// use NewLedger(tx.Variants()).
type Ledger struct {
	variants port.VariantRepository
}

func NewLedger(variants port.VariantRepository) *Ledger {
	return &Ledger{variants: variants}
}

func check(ref domain.VariantRef, qty int) error {
	verr := &domain.ValidationError{}
	if !ref.Valid() {
		verr.Add("variant", "product id and color are required")
	}
	if qty <= 0 {
		verr.Add("quantity", "must be positive")
	}
	return verr.OrNil()
}

// Reserve holds qty units for a cart. It fails with *domain.StockError when
// fewer than qty units are available.
func (l *Ledger) Reserve(ctx context.Context, ref domain.VariantRef, qty int) (domain.Variant, error) {
	if err := check(ref, qty); err != nil {
		return domain.Variant{}, err
	}
	v, err := l.variants.Reserve(ctx, ref, qty)
	if err != nil {
		return domain.Variant{}, fmt.Errorf("reserve %s x%d: %w", ref, qty, err)
	}
	return v, nil
}

// Release gives qty units back; reserved never drops below zero.
func (l *Ledger) Release(ctx context.Context, ref domain.VariantRef, qty int) (domain.Variant, error) {
	if err := check(ref, qty); err != nil {
		return domain.Variant{}, err
	}
	v, err := l.variants.Release(ctx, ref, qty)
	if err != nil {
		return domain.Variant{}, fmt.Errorf("release %s x%d: %w", ref, qty, err)
	}
	return v, nil
}

// Commit turns a reservation into a permanent stock decrement.
func (l *Ledger) Commit(ctx context.Context, ref domain.VariantRef, qty int) (domain.Variant, error) {
	if err := check(ref, qty); err != nil {
		return domain.Variant{}, err
	}
	v, err := l.variants.Commit(ctx, ref, qty)
	if err != nil {
		return domain.Variant{}, fmt.Errorf("commit %s x%d: %w", ref, qty, err)
	}
	return v, nil
}

func (l *Ledger) Get(ctx context.Context, ref domain.VariantRef) (domain.Variant, error) {
	return l.variants.Get(ctx, ref)
}
