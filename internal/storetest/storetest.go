// Package storetest is the conformance suite every port.Store backend runs.
// Each test seeds its own uniquely named rows, so one database can serve the
// whole run.
package storetest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
)

// Opener returns a ready store. It should call t.Skip when the backend is
// not reachable.
type Opener func(t *testing.T) port.Store

func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s port.Store)
	}{
		{"ReserveRespectsAvailable", testReserve},
		{"ReleaseFloorsAtZero", testRelease},
		{"CommitNeedsStockAndReserved", testCommit},
		{"UnknownVariant", testUnknownVariant},
		{"ConcurrentReserve", testConcurrentReserve},
		{"CounterIsContiguous", testCounter},
		{"TxRollback", testTxRollback},
		{"ProductUpsertKeepsReserved", testProductUpsert},
		{"Carts", testCarts},
		{"CartIdentityIsUnique", testCartIdentityUnique},
		{"Orders", testOrders},
		{"Customers", testCustomers},
		{"Wishlists", testWishlists},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

// SeedProduct stores a product with one variant per color and zero reserved.
func SeedProduct(t *testing.T, s port.Store, price string, stock map[string]int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		ID:          "p-" + uuid.NewString()[:8],
		Name:        "Test product",
		Price:       decimal.RequireFromString(price),
		DiscountPct: decimal.Zero,
		MarkupPct:   decimal.Zero,
	}
	colors := make([]string, 0, len(stock))
	for c := range stock {
		colors = append(colors, c)
	}
	sort.Strings(colors)
	for _, c := range colors {
		p.Variants = append(p.Variants, domain.Variant{Color: c, Stock: stock[c]})
	}
	if err := s.Products().Upsert(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func mustVariant(t *testing.T, s port.Store, ref domain.VariantRef) domain.Variant {
	t.Helper()
	v, err := s.Variants().Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("get variant %s: %v", ref, err)
	}
	return v
}

func testReserve(t *testing.T, s port.Store) {
	ctx := context.Background()
	p := SeedProduct(t, s, "10", map[string]int{"red": 3})
	ref := domain.VariantRef{ProductID: p.ID, Color: "red"}

	v, err := s.Variants().Reserve(ctx, ref, 2)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if v.Stock != 3 || v.Reserved != 2 {
		t.Errorf("expected 3/2, got %d/%d", v.Stock, v.Reserved)
	}

	_, err = s.Variants().Reserve(ctx, ref, 2)
	var se *domain.StockError
	if !errors.As(err, &se) {
		t.Fatalf("expected StockError, got %v", err)
	}
	if se.Available != 1 || se.Requested != 2 {
		t.Errorf("expected available 1 requested 2, got %+v", se)
	}
	if got := mustVariant(t, s, ref); got.Reserved != 2 {
		t.Errorf("failed reserve changed reserved to %d", got.Reserved)
	}
}

func testRelease(t *testing.T, s port.Store) {
	ctx := context.Background()
	p := SeedProduct(t, s, "10", map[string]int{"blue": 4})
	ref := domain.VariantRef{ProductID: p.ID, Color: "blue"}

	if _, err := s.Variants().Reserve(ctx, ref, 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	v, err := s.Variants().Release(ctx, ref, 3)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if v.Reserved != 0 || v.Stock != 4 {
		t.Errorf("expected 4/0, got %d/%d", v.Stock, v.Reserved)
	}
}

func testCommit(t *testing.T, s port.Store) {
	ctx := context.Background()
	p := SeedProduct(t, s, "10", map[string]int{"green": 5})
	ref := domain.VariantRef{ProductID: p.ID, Color: "green"}

	if _, err := s.Variants().Reserve(ctx, ref, 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	v, err := s.Variants().Commit(ctx, ref, 1)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if v.Stock != 4 || v.Reserved != 0 {
		t.Errorf("expected 4/0, got %d/%d", v.Stock, v.Reserved)
	}

	// nothing reserved any more
	if _, err := s.Variants().Commit(ctx, ref, 1); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
	if got := mustVariant(t, s, ref); got.Stock != 4 || got.Reserved != 0 {
		t.Errorf("failed commit changed counters to %d/%d", got.Stock, got.Reserved)
	}
}

func testUnknownVariant(t *testing.T, s port.Store) {
	ctx := context.Background()
	p := SeedProduct(t, s, "10", map[string]int{"red": 1})

	for _, ref := range []domain.VariantRef{
		{ProductID: p.ID, Color: "purple"},
		{ProductID: "missing-" + uuid.NewString(), Color: "red"},
	} {
		if _, err := s.Variants().Reserve(ctx, ref, 1); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("reserve %s: expected ErrNotFound, got %v", ref, err)
		}
		if _, err := s.Variants().Commit(ctx, ref, 1); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("commit %s: expected ErrNotFound, got %v", ref, err)
		}
	}
}

func testConcurrentReserve(t *testing.T, s port.Store) {
	const available, callers = 5, 20
	ctx := context.Background()
	p := SeedProduct(t, s, "10", map[string]int{"black": available})
	ref := domain.VariantRef{ProductID: p.ID, Color: "black"}

	var ok, limited atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Variants().Reserve(ctx, ref, 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				limited.Add(1)
			default:
				t.Errorf("reserve: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != available || limited.Load() != callers-available {
		t.Errorf("expected %d ok / %d limited, got %d / %d", available, callers-available, ok.Load(), limited.Load())
	}
	if v := mustVariant(t, s, ref); v.Reserved != available {
		t.Errorf("expected reserved %d, got %d", available, v.Reserved)
	}
}

func testCounter(t *testing.T, s port.Store) {
	const n = 100
	ctx := context.Background()
	name := "order-" + uuid.NewString()

	got := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.Counters().Next(ctx, name)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			got[i] = v
		}(i)
	}
	wg.Wait()

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, v := range got {
		if v != int64(i+1) {
			t.Fatalf("expected contiguous 1..%d, position %d holds %d", n, i, v)
		}
	}
}

func testTxRollback(t *testing.T, s port.Store) {
	ctx := context.Background()
	p := SeedProduct(t, s, "10", map[string]int{"red": 5})
	ref := domain.VariantRef{ProductID: p.ID, Color: "red"}
	if _, err := s.Variants().Reserve(ctx, ref, 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, r port.Repositories) error {
		if _, err := r.Variants().Commit(ctx, ref, 1); err != nil {
			return err
		}
		c := domain.NewCart(domain.Session("rollback-"+uuid.NewString()), time.Now().UTC())
		c.SetQuantity(ref, 1)
		if err := r.Carts().Save(ctx, c); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if v := mustVariant(t, s, ref); v.Stock != 5 || v.Reserved != 1 {
		t.Errorf("rollback left %d/%d, want 5/1", v.Stock, v.Reserved)
	}
}

func testProductUpsert(t *testing.T, s port.Store) {
	ctx := context.Background()
	p := SeedProduct(t, s, "10", map[string]int{"red": 5})
	ref := domain.VariantRef{ProductID: p.ID, Color: "red"}
	if _, err := s.Variants().Reserve(ctx, ref, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	p.Name = "Renamed"
	p.Variants = []domain.Variant{{Color: "red", Stock: 8}, {Color: "white", Stock: 2}}
	if err := s.Products().Upsert(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.Products().Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Renamed" || len(got.Variants) != 2 {
		t.Fatalf("unexpected product %+v", got)
	}
	if v, _ := got.Variant("red"); v.Stock != 8 || v.Reserved != 3 {
		t.Errorf("expected red 8/3, got %d/%d", v.Stock, v.Reserved)
	}
	if !got.Price.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected price 10, got %s", got.Price)
	}

	p.Variants = []domain.Variant{{Color: "red", Stock: 2}, {Color: "white", Stock: 2}}
	if err := s.Products().Upsert(ctx, p); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation lowering stock below reserved, got %v", err)
	}
}

func testCarts(t *testing.T, s port.Store) {
	ctx := context.Background()
	guest := domain.Session("s-" + uuid.NewString())
	account := domain.Account("u-" + uuid.NewString())
	ref := domain.VariantRef{ProductID: "p-1", Color: "red"}

	if _, err := s.Carts().FindByIdentity(ctx, guest); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	c := domain.NewCart(guest, time.Now().UTC())
	c.SetQuantity(ref, 2)
	if err := s.Carts().Save(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Carts().FindByIdentity(ctx, guest)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != c.ID || got.Quantity(ref) != 2 {
		t.Errorf("unexpected cart %+v", got)
	}

	got.SetQuantity(ref, 0)
	got.SetQuantity(domain.VariantRef{ProductID: "p-2", Color: "blue"}, 1)
	got.Identity = account
	if err := s.Carts().Save(ctx, got); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if _, err := s.Carts().FindByIdentity(ctx, guest); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("guest identity still resolves after reassignment: %v", err)
	}
	moved, err := s.Carts().FindByIdentity(ctx, account)
	if err != nil {
		t.Fatalf("find by account: %v", err)
	}
	if len(moved.Lines) != 1 || moved.Lines[0].ProductID != "p-2" {
		t.Errorf("unexpected lines %+v", moved.Lines)
	}

	if err := s.Carts().Delete(ctx, moved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Carts().FindByIdentity(ctx, account); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func testCartIdentityUnique(t *testing.T, s port.Store) {
	ctx := context.Background()
	id := domain.Session("s-" + uuid.NewString())
	if err := s.Carts().Save(ctx, domain.NewCart(id, time.Now().UTC())); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Carts().Save(ctx, domain.NewCart(id, time.Now().UTC())); !errors.Is(err, domain.ErrWriteConflict) {
		t.Errorf("expected ErrWriteConflict, got %v", err)
	}
}

func newOrder(code string, number int64) *domain.Order {
	now := time.Now().UTC()
	return &domain.Order{
		ID:          uuid.NewString(),
		OrderNumber: number,
		RandomID:    code,
		Identity:    domain.Session("s-" + uuid.NewString()),
		Lines: []domain.OrderLine{{
			ProductID: "p-1", ProductName: "Mug", Color: "red",
			UnitPrice: decimal.RequireFromString("12.50"), Quantity: 2,
			LineTotal: decimal.RequireFromString("25.00"),
		}},
		Subtotal:     decimal.RequireFromString("25.00"),
		ShippingCost: decimal.NewFromInt(50),
		Total:        decimal.RequireFromString("75.00"),
		Contact: domain.ContactInfo{
			Email: "buyer@example.com", FirstName: "Mona", LastName: "Adel",
			Address: "12 Nile St", Phone: "01012345678", City: "Cairo",
			Governorate: "Cairo", PaymentMethod: domain.PaymentCash,
		},
		Status:    domain.StatusPlaced,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testOrders(t *testing.T, s port.Store) {
	ctx := context.Background()
	code := strings.ToUpper(uuid.NewString()[:8])
	base := time.Now().UnixNano()
	older, newer := newOrder(code, base), newOrder(code, base+1)
	for _, o := range []*domain.Order{older, newer} {
		if err := s.Orders().Create(ctx, o); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.Orders().Get(ctx, older.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Lines) != 1 || !got.Lines[0].LineTotal.Equal(decimal.NewFromInt(25)) || !got.Total.Equal(decimal.NewFromInt(75)) {
		t.Errorf("unexpected order %+v", got)
	}
	if got.Identity != older.Identity {
		t.Errorf("identity %v, want %v", got.Identity, older.Identity)
	}

	byCode, err := s.Orders().FindByCode(ctx, code)
	if err != nil {
		t.Fatalf("find by code: %v", err)
	}
	if byCode.ID != newer.ID {
		t.Errorf("expected most recent order %s, got %s", newer.ID, byCode.ID)
	}

	status, city := domain.StatusShipping, "Giza"
	patched, err := s.Orders().ApplyPatch(ctx, older.ID, domain.OrderPatch{Status: &status, City: &city})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patched.Status != domain.StatusShipping || patched.Contact.City != "Giza" || patched.Contact.FirstName != "Mona" {
		t.Errorf("unexpected patched order %+v", patched)
	}
	if _, err := s.Orders().Get(ctx, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testCustomers(t *testing.T, s port.Store) {
	ctx := context.Background()
	email := uuid.NewString()[:8] + "@example.com"
	ci := domain.ContactInfo{Email: email, FirstName: "Omar", LastName: "Ali", Address: "1 Road st", Phone: "01112345678", City: "Giza", Governorate: "Giza"}
	c := domain.CustomerFromContact(uuid.NewString(), ci, time.Now().UTC())
	if err := s.Customers().Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := domain.CustomerFromContact(uuid.NewString(), ci, time.Now().UTC())
	if err := s.Customers().Create(ctx, dup); !errors.Is(err, domain.ErrWriteConflict) {
		t.Errorf("expected ErrWriteConflict on duplicate email, got %v", err)
	}

	if err := s.Customers().Patch(ctx, c.ID, domain.ProfileChanges{domain.FieldCity: "Cairo"}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if err := s.Customers().AppendOrder(ctx, c.ID, "o-1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Customers().AppendOrder(ctx, c.ID, "o-2"); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := s.Customers().FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.City != "Cairo" || got.FirstName != "Omar" {
		t.Errorf("unexpected profile %+v", got)
	}
	if len(got.OrderIDs) != 2 || got.OrderIDs[0] != "o-1" || got.OrderIDs[1] != "o-2" {
		t.Errorf("unexpected order ids %v", got.OrderIDs)
	}
}

func testWishlists(t *testing.T, s port.Store) {
	ctx := context.Background()
	id := domain.Session("s-" + uuid.NewString())
	w := domain.NewWishlist(id, time.Now().UTC())
	w.Toggle("p-1")
	w.Toggle("p-2")
	if err := s.Wishlists().Save(ctx, w); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Wishlists().FindByIdentity(ctx, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.Has("p-1") || !got.Has("p-2") || len(got.ProductIDs) != 2 {
		t.Errorf("unexpected wishlist %+v", got)
	}
	got.Toggle("p-1")
	if err := s.Wishlists().Save(ctx, got); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, _ = s.Wishlists().FindByIdentity(ctx, id)
	if got.Has("p-1") {
		t.Errorf("p-1 still present after toggle")
	}
	if err := s.Wishlists().Delete(ctx, got.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Wishlists().FindByIdentity(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
