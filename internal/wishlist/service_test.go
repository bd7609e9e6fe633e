package wishlist

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/memstore"
	"github.com/ariefcatur/go-storefront-checkout/internal/storetest"
)

func TestToggle(t *testing.T) {
	s := memstore.New()
	p := storetest.SeedProduct(t, s, "10", map[string]int{"red": 1})
	svc := &Service{Store: s}
	id := domain.Session("s-1")
	ctx := context.Background()

	w, added, err := svc.Toggle(ctx, id, p.ID)
	if err != nil || !added || !w.Has(p.ID) {
		t.Fatalf("first toggle: added=%v %+v %v", added, w, err)
	}
	w, added, err = svc.Toggle(ctx, id, p.ID)
	if err != nil || added || w.Has(p.ID) {
		t.Fatalf("second toggle: added=%v %+v %v", added, w, err)
	}

	if _, _, err := svc.Toggle(ctx, id, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown product, got %v", err)
	}
	if _, _, err := svc.Toggle(ctx, domain.Identity{}, p.ID); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestGetAndEmpty(t *testing.T) {
	s := memstore.New()
	p := storetest.SeedProduct(t, s, "10", map[string]int{"red": 1})
	svc := &Service{Store: s}
	id := domain.Account("u-1")
	ctx := context.Background()

	w, err := svc.Get(ctx, id)
	if err != nil || len(w.ProductIDs) != 0 {
		t.Fatalf("get on fresh identity: %+v %v", w, err)
	}
	if _, _, err := svc.Toggle(ctx, id, p.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	w, err = svc.Empty(ctx, id)
	if err != nil || len(w.ProductIDs) != 0 {
		t.Fatalf("empty: %+v %v", w, err)
	}
	w, _ = svc.Get(ctx, id)
	if w.Has(p.ID) {
		t.Errorf("emptied wishlist still has %s", p.ID)
	}
}

func TestMerge_ReassignsWhenAccountHasNone(t *testing.T) {
	s := memstore.New()
	p := storetest.SeedProduct(t, s, "10", map[string]int{"red": 1})
	svc := &Service{Store: s}
	ctx := context.Background()

	guest, _, err := svc.Toggle(ctx, domain.Session("g"), p.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	w, err := Merge(ctx, s, domain.Session("g"), domain.Account("u"), guest.UpdatedAt)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if w.ID != guest.ID || !w.Identity.IsAccount() || !w.Has(p.ID) {
		t.Errorf("expected guest list reassigned, got %+v", w)
	}
}
