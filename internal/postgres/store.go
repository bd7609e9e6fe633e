package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// repos binds every repository to one dbtx. Inside a transaction, aggregate
// reads take row locks (SELECT ... FOR UPDATE).
type repos struct {
	db      dbtx
	locking bool
}

func (r repos) Variants() port.VariantRepository   { return variantRepo{r} }
func (r repos) Products() port.ProductRepository   { return productRepo{r} }
func (r repos) Carts() port.CartRepository         { return cartRepo{r} }
func (r repos) Orders() port.OrderRepository       { return orderRepo{r} }
func (r repos) Counters() port.CounterRepository   { return counterRepo{r} }
func (r repos) Customers() port.CustomerRepository { return customerRepo{r} }
func (r repos) Wishlists() port.WishlistRepository { return wishlistRepo{r} }

func (r repos) forUpdate() string {
	if r.locking {
		return " FOR UPDATE"
	}
	return ""
}

func (s *Store) root() repos { return repos{db: s.DB} }

func (s *Store) Variants() port.VariantRepository   { return s.root().Variants() }
func (s *Store) Products() port.ProductRepository   { return s.root().Products() }
func (s *Store) Carts() port.CartRepository         { return s.root().Carts() }
func (s *Store) Orders() port.OrderRepository       { return s.root().Orders() }
func (s *Store) Counters() port.CounterRepository   { return s.root().Counters() }
func (s *Store) Customers() port.CustomerRepository { return s.root().Customers() }
func (s *Store) Wishlists() port.WishlistRepository { return s.root().Wishlists() }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r port.Repositories) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return translate(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, repos{db: tx, locking: true}); err != nil {
		return translate(err)
	}
	return translate(tx.Commit(ctx))
}

// translate maps driver errors onto the domain taxonomy. Errors that already
// belong to it pass through.
func translate(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		domain.ErrValidation, domain.ErrInsufficientStock, domain.ErrEmptyCart,
		domain.ErrNotFound, domain.ErrCheckoutConflict, domain.ErrPersistence, domain.ErrWriteConflict,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%w: %s", domain.ErrWriteConflict, pgErr.Message)
		case "23514":
			return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.Message)
		case "23503":
			return fmt.Errorf("%w: %s", domain.ErrNotFound, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}

var _ port.Store = (*Store)(nil)
