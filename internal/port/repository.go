package port

import (
	"context"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

type VariantRepository interface {
	// Reserve atomically adds qty to reserved when stock - reserved >= qty.
	// Returns *domain.StockError otherwise.
	Reserve(ctx context.Context, ref domain.VariantRef, qty int) (domain.Variant, error)

	// Release subtracts qty from reserved, floored at zero.
	Release(ctx context.Context, ref domain.VariantRef, qty int) (domain.Variant, error)

	// Commit subtracts qty from both stock and reserved when both hold at least qty.
	Commit(ctx context.Context, ref domain.VariantRef, qty int) (domain.Variant, error)

	Get(ctx context.Context, ref domain.VariantRef) (domain.Variant, error)
}

type ProductRepository interface {
	Get(ctx context.Context, id string) (*domain.Product, error)

	// Upsert writes catalog fields and variant stock. Reserved counters are
	// kept; lowering stock below a variant's reserved count is rejected.
	Upsert(ctx context.Context, p *domain.Product) error
}

type CartRepository interface {
	// FindByIdentity returns domain.ErrNotFound when the identity owns no cart.
	// Inside a transaction the cart row stays locked until the end of it.
	FindByIdentity(ctx context.Context, id domain.Identity) (*domain.Cart, error)
	Save(ctx context.Context, c *domain.Cart) error
	Delete(ctx context.Context, cartID string) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)

	// FindByCode returns the most recent order carrying the public code.
	FindByCode(ctx context.Context, code string) (*domain.Order, error)
	ApplyPatch(ctx context.Context, id string, p domain.OrderPatch) (*domain.Order, error)
}

type CounterRepository interface {
	// Next increments the named counter and returns the new value. A missing
	// counter starts at 1.
	Next(ctx context.Context, name string) (int64, error)
}

type CustomerRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Customer, error)
	Create(ctx context.Context, c *domain.Customer) error
	Patch(ctx context.Context, id string, ch domain.ProfileChanges) error
	AppendOrder(ctx context.Context, id, orderID string) error
}

type WishlistRepository interface {
	FindByIdentity(ctx context.Context, id domain.Identity) (*domain.Wishlist, error)
	Save(ctx context.Context, w *domain.Wishlist) error
	Delete(ctx context.Context, id string) error
}

// Repositories is the set of repositories bound to one connection or
// transaction.
type Repositories interface {
	Variants() VariantRepository
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	Counters() CounterRepository
	Customers() CustomerRepository
	Wishlists() WishlistRepository
}

// Store is a Repositories that can also open a transaction. fn receives
// repositories bound to the transaction; a non-nil return rolls it back.
type Store interface {
	Repositories
	InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
}
