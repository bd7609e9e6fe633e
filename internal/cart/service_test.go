package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/memstore"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
	"github.com/ariefcatur/go-storefront-checkout/internal/storetest"
)

func setup(t *testing.T, stock map[string]int) (*Service, port.Store, *domain.Product) {
	t.Helper()
	s := memstore.New()
	p := storetest.SeedProduct(t, s, "100", stock)
	return &Service{Store: s}, s, p
}

func reserved(t *testing.T, s port.Store, ref domain.VariantRef) int {
	t.Helper()
	v, err := s.Variants().Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	return v.Reserved
}

func TestAddLine_Reserves(t *testing.T) {
	svc, s, p := setup(t, map[string]int{"red": 5})
	ref := domain.VariantRef{ProductID: p.ID, Color: "red"}
	id := domain.Session("s-1")
	ctx := context.Background()

	res, err := svc.AddLine(ctx, id, ref, 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.LimitReached || res.Cart.Quantity(ref) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := svc.AddLine(ctx, id, ref, 1); err != nil {
		t.Fatalf("add again: %v", err)
	}

	c, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(c.Lines) != 1 || c.Quantity(ref) != 3 {
		t.Errorf("expected one line of 3, got %+v", c.Lines)
	}
	if got := reserved(t, s, ref); got != 3 {
		t.Errorf("expected reserved 3, got %d", got)
	}
}

func TestAddLine_LimitReachedIsSoft(t *testing.T) {
	svc, s, p := setup(t, map[string]int{"red": 1})
	ref := domain.VariantRef{ProductID: p.ID, Color: "red"}
	id := domain.Session("s-1")

	res, err := svc.AddLine(context.Background(), id, ref, 2)
	if err != nil {
		t.Fatalf("expected soft fail, got error %v", err)
	}
	if !res.LimitReached || res.Available != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if got := reserved(t, s, ref); got != 0 {
		t.Errorf("expected reserved 0, got %d", got)
	}
	if _, err := s.Carts().FindByIdentity(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cart should not be created on a refused add: %v", err)
	}
}

func TestAddLine_UnknownVariant(t *testing.T) {
	svc, _, p := setup(t, map[string]int{"red": 1})
	_, err := svc.AddLine(context.Background(), domain.Session("s-1"), domain.VariantRef{ProductID: p.ID, Color: "pink"}, 1)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddLine_Validation(t *testing.T) {
	svc, _, p := setup(t, map[string]int{"red": 1})
	ref := domain.VariantRef{ProductID: p.ID, Color: "red"}
	for name, call := range map[string]func() error{
		"no identity": func() error { _, err := svc.AddLine(context.Background(), domain.Identity{}, ref, 1); return err },
		"zero qty":    func() error { _, err := svc.AddLine(context.Background(), domain.Session("s"), ref, 0); return err },
		"no color": func() error {
			_, err := svc.AddLine(context.Background(), domain.Session("s"), domain.VariantRef{ProductID: p.ID}, 1)
			return err
		},
	} {
		if err := call(); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestAddLine_ConcurrentSessions(t *testing.T) {
	const available, callers = 5, 20
	svc, s, p := setup(t, map[string]int{"red": available})
	ref := domain.VariantRef{ProductID: p.ID, Color: "red"}

	var ok, limited atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.AddLine(context.Background(), domain.Session(fmt.Sprintf("s-%d", i)), ref, 1)
			switch {
			case err != nil:
				t.Errorf("add: %v", err)
			case res.LimitReached:
				limited.Add(1)
			default:
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if ok.Load() != available || limited.Load() != callers-available {
		t.Errorf("expected %d ok / %d limited, got %d / %d", available, callers-available, ok.Load(), limited.Load())
	}
	if got := reserved(t, s, ref); got != available {
		t.Errorf("expected reserved %d, got %d", available, got)
	}
}

func TestAddLine_ConcurrentSameCartMatchesLedger(t *testing.T) {
	svc, s, p := setup(t, map[string]int{"red": 4})
	ref := domain.VariantRef{ProductID: p.ID, Color: "red"}
	id := domain.Account("u-1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddLine(context.Background(), id, ref, 1); err != nil {
				t.Errorf("add: %v", err)
			}
		}()
	}
	wg.Wait()

	c, _ := svc.Get(context.Background(), id)
	if c.Quantity(ref) != 4 || reserved(t, s, ref) != 4 {
		t.Errorf("cart %d vs reserved %d, want 4/4", c.Quantity(ref), reserved(t, s, ref))
	}
}

func TestChangeQuantity(t *testing.T) {
	svc, s, p := setup(t, map[string]int{"red": 2})
	ref := domain.VariantRef{ProductID: p.ID, Color: "red"}
	id := domain.Session("s-1")
	ctx := context.Background()

	if _, err := svc.DecrementLine(ctx, id, ref); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("decrement without cart: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.AddLine(ctx, id, ref, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if res, err := svc.IncrementLine(ctx, id, ref); err != nil || res.Cart.Quantity(ref) != 2 {
		t.Fatalf("increment: %+v %v", res, err)
	}
	res, err := svc.IncrementLine(ctx, id, ref)
	if err != nil || !res.LimitReached {
		t.Fatalf("expected limit reached at stock, got %+v %v", res, err)
	}
	if got := reserved(t, s, ref); got != 2 {
		t.Errorf("expected reserved 2, got %d", got)
	}

	for want := 1; want >= 0; want-- {
		res, err := svc.DecrementLine(ctx, id, ref)
		if err != nil {
			t.Fatalf("decrement: %v", err)
		}
		if res.Cart.Quantity(ref) != want || reserved(t, s, ref) != want {
			t.Fatalf("expected %d, cart %d reserved %d", want, res.Cart.Quantity(ref), reserved(t, s, ref))
		}
	}
	c, _ := svc.Get(ctx, id)
	if !c.IsEmpty() {
		t.Errorf("expected line removed at zero, got %+v", c.Lines)
	}
	if _, err := svc.ChangeQuantity(ctx, id, ref, 2); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for delta 2, got %v", err)
	}
}

func TestRemoveLine_Idempotent(t *testing.T) {
	svc, s, p := setup(t, map[string]int{"red": 5, "blue": 5})
	red := domain.VariantRef{ProductID: p.ID, Color: "red"}
	blue := domain.VariantRef{ProductID: p.ID, Color: "blue"}
	id := domain.Session("s-1")
	ctx := context.Background()

	for _, ref := range []domain.VariantRef{red, blue} {
		if _, err := svc.AddLine(ctx, id, ref, 2); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		c, err := svc.RemoveLine(ctx, id, red)
		if err != nil {
			t.Fatalf("remove #%d: %v", i+1, err)
		}
		if c.Quantity(red) != 0 || c.Quantity(blue) != 2 {
			t.Errorf("remove #%d: unexpected lines %+v", i+1, c.Lines)
		}
	}
	if reserved(t, s, red) != 0 || reserved(t, s, blue) != 2 {
		t.Errorf("unexpected reservations red=%d blue=%d", reserved(t, s, red), reserved(t, s, blue))
	}
	if _, err := svc.RemoveLine(ctx, domain.Session("nobody"), red); err != nil {
		t.Errorf("remove on missing cart: %v", err)
	}
}

func TestEmpty_ReleasesEverything(t *testing.T) {
	svc, s, p := setup(t, map[string]int{"red": 5, "blue": 5})
	red := domain.VariantRef{ProductID: p.ID, Color: "red"}
	blue := domain.VariantRef{ProductID: p.ID, Color: "blue"}
	id := domain.Session("s-1")
	ctx := context.Background()

	_, _ = svc.AddLine(ctx, id, red, 3)
	_, _ = svc.AddLine(ctx, id, blue, 1)

	c, err := svc.Empty(ctx, id)
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if !c.IsEmpty() {
		t.Errorf("expected empty cart, got %+v", c.Lines)
	}
	if reserved(t, s, red) != 0 || reserved(t, s, blue) != 0 {
		t.Errorf("reservations left: red=%d blue=%d", reserved(t, s, red), reserved(t, s, blue))
	}
	if _, err := s.Carts().FindByIdentity(ctx, id); err != nil {
		t.Errorf("emptied cart should still exist: %v", err)
	}
	if c, err := svc.Empty(ctx, domain.Session("nobody")); err != nil || !c.IsEmpty() {
		t.Errorf("empty on missing cart: %+v %v", c, err)
	}
}
