// Package mongox is the document-store backend. Ledger calls are single
// FindOneAndUpdate operations with a precondition filter; multi-document
// work runs in a session transaction that is committed by hand, so the
// driver's own retry loop never stacks on top of port.WithRetry.
package mongox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
)

const (
	colProducts  = "products"
	colVariants  = "variants"
	colCarts     = "carts"
	colOrders    = "orders"
	colCounters  = "counters"
	colCustomers = "customers"
	colWishlists = "wishlists"
)

// mongo WriteConflict
const codeWriteConflict = 112

func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetTimeout(10*time.Second))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

type Store struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func New(client *mongo.Client, dbName string) *Store {
	return &Store{Client: client, DB: client.Database(dbName)}
}

func (s *Store) c(name string) *mongo.Collection { return s.DB.Collection(name) }

// Repositories need no transaction binding: operations join the session
// carried by ctx.
func (s *Store) Variants() port.VariantRepository   { return variantRepo{s} }
func (s *Store) Products() port.ProductRepository   { return productRepo{s} }
func (s *Store) Carts() port.CartRepository         { return cartRepo{s} }
func (s *Store) Orders() port.OrderRepository       { return orderRepo{s} }
func (s *Store) Counters() port.CounterRepository   { return counterRepo{s} }
func (s *Store) Customers() port.CustomerRepository { return customerRepo{s} }
func (s *Store) Wishlists() port.WishlistRepository { return wishlistRepo{s} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r port.Repositories) error) error {
	sess, err := s.Client.StartSession()
	if err != nil {
		return translate(err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := sess.StartTransaction(opts); err != nil {
		return translate(err)
	}
	sc := mongo.NewSessionContext(ctx, sess)
	if err := fn(sc, s); err != nil {
		_ = sess.AbortTransaction(context.WithoutCancel(ctx))
		return translate(err)
	}
	if err := sess.CommitTransaction(sc); err != nil {
		_ = sess.AbortTransaction(context.WithoutCancel(ctx))
		return translate(err)
	}
	return nil
}

// EnsureIndexes creates the unique keys the repositories rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		colVariants:  {{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "color", Value: 1}}, Options: unique}},
		colCarts:     {{Keys: bson.D{{Key: "identity_kind", Value: 1}, {Key: "identity_key", Value: 1}}, Options: unique}},
		colWishlists: {{Keys: bson.D{{Key: "identity_kind", Value: 1}, {Key: "identity_key", Value: 1}}, Options: unique}},
		colCustomers: {{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique}},
		colOrders: {
			{Keys: bson.D{{Key: "order_number", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "random_id", Value: 1}, {Key: "order_number", Value: -1}}},
		},
	}
	for col, models := range specs {
		if _, err := s.c(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("indexes %s: %w", col, err)
		}
	}
	return nil
}

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
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", domain.ErrWriteConflict, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(codeWriteConflict) || se.HasErrorLabel("TransientTransactionError")) {
		return fmt.Errorf("%w: %v", domain.ErrWriteConflict, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}

var _ port.Store = (*Store)(nil)
