package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/memstore"
	"github.com/ariefcatur/go-storefront-checkout/internal/storetest"
	"github.com/ariefcatur/go-storefront-checkout/internal/wishlist"
)

func TestMergeOnLogin_SumsLines(t *testing.T) {
	s := memstore.New()
	p := storetest.SeedProduct(t, s, "50", map[string]int{"a": 10, "b": 10})
	a := domain.VariantRef{ProductID: p.ID, Color: "a"}
	b := domain.VariantRef{ProductID: p.ID, Color: "b"}
	svc := &Service{Store: s}
	ctx := context.Background()

	mustAdd := func(id domain.Identity, ref domain.VariantRef, qty int) {
		t.Helper()
		if res, err := svc.AddLine(ctx, id, ref, qty); err != nil || res.LimitReached {
			t.Fatalf("add %s: %+v %v", ref, res, err)
		}
	}
	mustAdd(domain.Session("guest"), a, 2)
	mustAdd(domain.Session("guest"), b, 1)
	mustAdd(domain.Account("user"), a, 1)

	res, err := (&Merger{Store: s}).MergeOnLogin(ctx, "guest", "user")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Cart.Lines) != 2 || res.Cart.Quantity(a) != 3 || res.Cart.Quantity(b) != 1 {
		t.Errorf("expected {a:3, b:1}, got %+v", res.Cart.Lines)
	}
	if len(res.Adjustments) != 0 {
		t.Errorf("unexpected adjustments %+v", res.Adjustments)
	}
	if reserved(t, s, a) != 3 || reserved(t, s, b) != 1 {
		t.Errorf("reservation double count: a=%d b=%d", reserved(t, s, a), reserved(t, s, b))
	}
	if _, err := s.Carts().FindByIdentity(ctx, domain.Session("guest")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("guest cart should be deleted: %v", err)
	}
	stored, err := s.Carts().FindByIdentity(ctx, domain.Account("user"))
	if err != nil || stored.Quantity(a) != 3 {
		t.Errorf("account cart not saved: %+v %v", stored, err)
	}
}

func TestMergeOnLogin_ReassignsGuestCart(t *testing.T) {
	s := memstore.New()
	p := storetest.SeedProduct(t, s, "50", map[string]int{"a": 10})
	a := domain.VariantRef{ProductID: p.ID, Color: "a"}
	svc := &Service{Store: s}
	ctx := context.Background()

	first, err := svc.AddLine(ctx, domain.Session("guest"), a, 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	res, err := (&Merger{Store: s}).MergeOnLogin(ctx, "guest", "user")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.Cart.ID != first.Cart.ID || !res.Cart.Identity.IsAccount() || res.Cart.Quantity(a) != 2 {
		t.Errorf("expected the guest cart reassigned, got %+v", res.Cart)
	}
	if reserved(t, s, a) != 2 {
		t.Errorf("reassignment changed reservations: %d", reserved(t, s, a))
	}
	if _, err := s.Carts().FindByIdentity(ctx, domain.Session("guest")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("guest identity should no longer own a cart: %v", err)
	}
}

func TestMergeOnLogin_NoGuestCartIsNoop(t *testing.T) {
	s := memstore.New()
	p := storetest.SeedProduct(t, s, "50", map[string]int{"a": 10})
	a := domain.VariantRef{ProductID: p.ID, Color: "a"}
	ctx := context.Background()
	if _, err := (&Service{Store: s}).AddLine(ctx, domain.Account("user"), a, 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	res, err := (&Merger{Store: s}).MergeOnLogin(ctx, "guest", "user")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.Cart.Quantity(a) != 1 {
		t.Errorf("account cart changed: %+v", res.Cart.Lines)
	}

	res, err = (&Merger{Store: s}).MergeOnLogin(ctx, "guest-2", "user-2")
	if err != nil || !res.Cart.IsEmpty() {
		t.Errorf("neither cart: %+v %v", res.Cart, err)
	}
}

// Carts saved straight into the store carry stale quantities the ledger
// never granted; merging must still keep quantity within stock.
func TestMergeOnLogin_ClampsToStock(t *testing.T) {
	s := memstore.New()
	p := storetest.SeedProduct(t, s, "50", map[string]int{"a": 4})
	a := domain.VariantRef{ProductID: p.ID, Color: "a"}
	gone := domain.VariantRef{ProductID: "deleted-product", Color: "x"}
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.Variants().Reserve(ctx, a, 4); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	guest := domain.NewCart(domain.Session("guest"), now)
	guest.SetQuantity(a, 3)
	guest.SetQuantity(gone, 1)
	account := domain.NewCart(domain.Account("user"), now)
	account.SetQuantity(a, 2)
	for _, c := range []*domain.Cart{guest, account} {
		if err := s.Carts().Save(ctx, c); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	res, err := (&Merger{Store: s}).MergeOnLogin(ctx, "guest", "user")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.Cart.Quantity(a) != 4 || res.Cart.Quantity(gone) != 0 {
		t.Errorf("expected a clamped to 4 and the vanished line dropped, got %+v", res.Cart.Lines)
	}
	if got := reserved(t, s, a); got != 3 {
		t.Errorf("expected excess of 1 released (reserved 3), got %d", got)
	}
	if len(res.Adjustments) != 2 {
		t.Fatalf("expected 2 adjustments, got %+v", res.Adjustments)
	}
}

func TestMergeOnLogin_MergesWishlists(t *testing.T) {
	s := memstore.New()
	p1 := storetest.SeedProduct(t, s, "10", map[string]int{"a": 1})
	p2 := storetest.SeedProduct(t, s, "10", map[string]int{"a": 1})
	wl := &wishlist.Service{Store: s}
	ctx := context.Background()

	for _, step := range []struct {
		id  domain.Identity
		pid string
	}{
		{domain.Session("guest"), p1.ID},
		{domain.Session("guest"), p2.ID},
		{domain.Account("user"), p1.ID},
	} {
		if _, _, err := wl.Toggle(ctx, step.id, step.pid); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}

	res, err := (&Merger{Store: s}).MergeOnLogin(ctx, "guest", "user")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Wishlist.ProductIDs) != 2 || !res.Wishlist.Has(p1.ID) || !res.Wishlist.Has(p2.ID) {
		t.Errorf("expected union of both lists, got %v", res.Wishlist.ProductIDs)
	}
	if _, err := s.Wishlists().FindByIdentity(ctx, domain.Session("guest")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("guest wishlist should be gone: %v", err)
	}
}

func TestMergeOnLogin_Validation(t *testing.T) {
	_, err := (&Merger{Store: memstore.New()}).MergeOnLogin(context.Background(), " ", "")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Errorf("expected both ids rejected, got %v", err)
	}
}
