// Package memstore is an in-process port.Store. One mutex guards all data;
// a transaction holds it for its whole run and restores a snapshot when fn
// fails. It backs tests and STORE_DRIVER=memory.
package memstore

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
)

type data struct {
	products    map[string]*domain.Product
	carts       map[string]*domain.Cart
	cartIdx     map[domain.Identity]string
	orders      map[string]*domain.Order
	counters    map[string]int64
	customers   map[string]*domain.Customer
	customerIdx map[string]string
	wishlists   map[string]*domain.Wishlist
	wishlistIdx map[domain.Identity]string
}

func newData() *data {
	return &data{
		products:    map[string]*domain.Product{},
		carts:       map[string]*domain.Cart{},
		cartIdx:     map[domain.Identity]string{},
		orders:      map[string]*domain.Order{},
		counters:    map[string]int64{},
		customers:   map[string]*domain.Customer{},
		customerIdx: map[string]string{},
		wishlists:   map[string]*domain.Wishlist{},
		wishlistIdx: map[domain.Identity]string{},
	}
}

func (d *data) clone() *data {
	cp := newData()
	for k, p := range d.products {
		pp := *p
		pp.Variants = append([]domain.Variant(nil), p.Variants...)
		cp.products[k] = &pp
	}
	for k, c := range d.carts {
		cp.carts[k] = c.Clone()
	}
	for k, v := range d.cartIdx {
		cp.cartIdx[k] = v
	}
	for k, o := range d.orders {
		cp.orders[k] = o.Clone()
	}
	for k, v := range d.counters {
		cp.counters[k] = v
	}
	for k, c := range d.customers {
		cp.customers[k] = c.Clone()
	}
	for k, v := range d.customerIdx {
		cp.customerIdx[k] = v
	}
	for k, w := range d.wishlists {
		cp.wishlists[k] = w.Clone()
	}
	for k, v := range d.wishlistIdx {
		cp.wishlistIdx[k] = v
	}
	return cp
}

type Store struct {
	mu sync.Mutex
	d  *data
}

func New() *Store { return &Store{d: newData()} }

// view implements port.Repositories. Outside a transaction every call takes
// the store lock; inside one the lock is already held.
type view struct {
	s    *Store
	inTx bool
}

func (v view) do(fn func(d *data) error) error {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	return fn(v.s.d)
}

func (s *Store) root() view { return view{s: s} }

func (s *Store) Variants() port.VariantRepository   { return variants{s.root()} }
func (s *Store) Products() port.ProductRepository   { return products{s.root()} }
func (s *Store) Carts() port.CartRepository         { return carts{s.root()} }
func (s *Store) Orders() port.OrderRepository       { return orders{s.root()} }
func (s *Store) Counters() port.CounterRepository   { return counters{s.root()} }
func (s *Store) Customers() port.CustomerRepository { return customers{s.root()} }
func (s *Store) Wishlists() port.WishlistRepository { return wishlists{s.root()} }

func (v view) Variants() port.VariantRepository   { return variants{v} }
func (v view) Products() port.ProductRepository   { return products{v} }
func (v view) Carts() port.CartRepository         { return carts{v} }
func (v view) Orders() port.OrderRepository       { return orders{v} }
func (v view) Counters() port.CounterRepository   { return counters{v} }
func (v view) Customers() port.CustomerRepository { return customers{v} }
func (v view) Wishlists() port.WishlistRepository { return wishlists{v} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r port.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.d.clone()
	if err := fn(ctx, view{s: s, inTx: true}); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

var _ port.Store = (*Store)(nil)
