package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

type memCache struct {
	mu          sync.Mutex
	byCode      map[string]*domain.Order
	gets, hits  int
	invalidated []string
}

func newMemCache() *memCache { return &memCache{byCode: map[string]*domain.Order{}} }

func (c *memCache) Get(_ context.Context, code string) (*domain.Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	o, ok := c.byCode[code]
	if ok {
		c.hits++
	}
	return o, ok, nil
}

func (c *memCache) Put(_ context.Context, o *domain.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCode[o.RandomID] = o
	return nil
}

func (c *memCache) Invalidate(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byCode, code)
	c.invalidated = append(c.invalidated, code)
	return nil
}

func placeOrder(t *testing.T, f fixture, code string) *domain.Order {
	t.Helper()
	f.add(t, f.ref, 1)
	c := &Coordinator{Store: f.store, Shipping: DefaultShippingTable(), NewCode: func() string { return code }}
	o, err := c.Checkout(context.Background(), f.id, validContact())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	return o
}

func TestGetByCode_CacheFirstAndMostRecent(t *testing.T) {
	f := newFixture(t, 5)
	placeOrder(t, f, "ZZ99")
	newer := placeOrder(t, f, "ZZ99")

	cache := newMemCache()
	svc := &Service{Store: f.store, Cache: cache}
	ctx := context.Background()

	o, err := svc.GetByCode(ctx, " zz99 ")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if o.ID != newer.ID {
		t.Errorf("expected the most recent order #%d, got #%d", newer.OrderNumber, o.OrderNumber)
	}
	if _, err := svc.GetByCode(ctx, "ZZ99"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if cache.gets != 2 || cache.hits != 1 {
		t.Errorf("expected a miss then a hit, got gets=%d hits=%d", cache.gets, cache.hits)
	}

	if _, err := svc.GetByCode(ctx, "NOPE"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetByCode(ctx, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, 5)
	o := placeOrder(t, f, "QW12")
	cache := newMemCache()
	svc := &Service{Store: f.store, Cache: cache}
	ctx := context.Background()

	delivered := domain.StatusDelivered
	if _, err := svc.Update(ctx, o.ID, domain.OrderPatch{Status: &delivered}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("placed -> delivered: expected ErrValidation, got %v", err)
	}

	shipping := domain.StatusShipping
	city := "  Nasr City "
	got, err := svc.Update(ctx, o.ID, domain.OrderPatch{Status: &shipping, City: &city})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != domain.StatusShipping || got.Contact.City != "Nasr City" {
		t.Errorf("patch not applied: %+v", got)
	}
	if !got.Total.Equal(o.Total) || len(got.Lines) != len(o.Lines) {
		t.Errorf("lines or totals changed")
	}

	cust, err := f.store.Customers().FindByEmail(ctx, o.Contact.Email)
	if err != nil || cust.City != "Nasr City" {
		t.Errorf("profile not patched: %+v %v", cust, err)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "QW12" {
		t.Errorf("expected cache invalidation for QW12, got %v", cache.invalidated)
	}

	if _, err := svc.Update(ctx, o.ID, domain.OrderPatch{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty patch: expected ErrValidation, got %v", err)
	}
	bad := "not-an-email"
	if _, err := svc.Update(ctx, o.ID, domain.OrderPatch{Email: &bad}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad email: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Update(ctx, "missing", domain.OrderPatch{Status: &shipping}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
