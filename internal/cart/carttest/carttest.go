// Package carttest runs cart.Service against a real port.Store backend.
// Cart operations are short transactions on shared variant rows, so this is
// where backend-specific conflict behaviour shows up.
package carttest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ariefcatur/go-storefront-checkout/internal/cart"
	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
	"github.com/ariefcatur/go-storefront-checkout/internal/storetest"
)

func Run(t *testing.T, open storetest.Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s port.Store)
	}{
		{"ConcurrentAddLineSessions", testConcurrentSessions},
		{"ConcurrentAddLineSameCart", testConcurrentSameCart},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

func reserved(t *testing.T, s port.Store, ref domain.VariantRef) int {
	t.Helper()
	v, err := s.Variants().Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("get variant %s: %v", ref, err)
	}
	return v.Reserved
}

// N sessions race for k units: exactly k succeed, the rest get the soft
// limit signal, and none sees an error.
func testConcurrentSessions(t *testing.T, s port.Store) {
	const available, callers = 5, 20
	p := storetest.SeedProduct(t, s, "10", map[string]int{"green": available})
	ref := domain.VariantRef{ProductID: p.ID, Color: "green"}
	svc := &cart.Service{Store: s}

	var ok, limited atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.Session(fmt.Sprintf("%s-s%d", p.ID, i))
			res, err := svc.AddLine(context.Background(), id, ref, 1)
			switch {
			case err != nil:
				t.Errorf("add line: %v", err)
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

// Concurrent adds into one cart leave the line equal to the reservation.
func testConcurrentSameCart(t *testing.T, s port.Store) {
	const stock, callers = 4, 10
	p := storetest.SeedProduct(t, s, "10", map[string]int{"green": stock})
	ref := domain.VariantRef{ProductID: p.ID, Color: "green"}
	id := domain.Session(p.ID + "-shared")
	svc := &cart.Service{Store: s}

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddLine(context.Background(), id, ref, 1); err != nil && !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("add line: %v", err)
			}
		}()
	}
	wg.Wait()

	c, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if got := reserved(t, s, ref); c.Quantity(ref) != stock || got != stock {
		t.Errorf("expected cart %d = reserved %d, got cart %d reserved %d", stock, stock, c.Quantity(ref), got)
	}
}
