package mongox

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

func identityFilter(id domain.Identity) bson.M {
	return bson.M{"identity_kind": string(id.Kind()), "identity_key": id.Key()}
}

type cartRepo struct{ s *Store }

func (r cartRepo) FindByIdentity(ctx context.Context, id domain.Identity) (*domain.Cart, error) {
	var doc cartDoc
	err := r.s.c(colCarts).FindOne(ctx, identityFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("cart", id.String())
	}
	if err != nil {
		return nil, translate(err)
	}
	return doc.cart()
}

func (r cartRepo) Save(ctx context.Context, c *domain.Cart) error {
	_, err := r.s.c(colCarts).ReplaceOne(ctx, bson.M{"_id": c.ID}, newCartDoc(c), options.Replace().SetUpsert(true))
	return translate(err)
}

func (r cartRepo) Delete(ctx context.Context, cartID string) error {
	_, err := r.s.c(colCarts).DeleteOne(ctx, bson.M{"_id": cartID})
	return translate(err)
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(ctx context.Context, o *domain.Order) error {
	_, err := r.s.c(colOrders).InsertOne(ctx, newOrderDoc(o))
	return translate(err)
}

func (r orderRepo) find(ctx context.Context, filter bson.M, key string, opts ...*options.FindOneOptions) (*domain.Order, error) {
	var doc orderDoc
	err := r.s.c(colOrders).FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("order", key)
	}
	if err != nil {
		return nil, translate(err)
	}
	return doc.order()
}

func (r orderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.find(ctx, bson.M{"_id": id}, id)
}

// FindByCode matches the stored upper-case code.
func (r orderRepo) FindByCode(ctx context.Context, code string) (*domain.Order, error) {
	return r.find(ctx, bson.M{"random_id": strings.ToUpper(code)}, code,
		options.FindOne().SetSort(bson.D{{Key: "order_number", Value: -1}}))
}

func (r orderRepo) ApplyPatch(ctx context.Context, id string, p domain.OrderPatch) (*domain.Order, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range p.Columns() {
		set[k] = v
	}
	var doc orderDoc
	err := r.s.c(colOrders).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("order", id)
	}
	if err != nil {
		return nil, translate(err)
	}
	return doc.order()
}

type counterRepo struct{ s *Store }

// Next upserts the counter. Two first-time callers can race on the insert;
// the loser sees a duplicate key and retries once against the existing doc.
func (r counterRepo) Next(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	next := func() error {
		return r.s.c(colCounters).FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&doc)
	}
	err := next()
	if mongo.IsDuplicateKeyError(err) {
		err = next()
	}
	return doc.Seq, translate(err)
}

type customerRepo struct{ s *Store }

func (r customerRepo) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var doc customerDoc
	err := r.s.c(colCustomers).FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("customer", email)
	}
	if err != nil {
		return nil, translate(err)
	}
	return &domain.Customer{
		ID: doc.ID, Email: doc.Email, FirstName: doc.FirstName, LastName: doc.LastName,
		Address: doc.Address, Phone: doc.Phone, City: doc.City, Governorate: doc.Governorate,
		OrderIDs: doc.OrderIDs, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (r customerRepo) Create(ctx context.Context, c *domain.Customer) error {
	ids := c.OrderIDs
	if ids == nil {
		ids = []string{}
	}
	_, err := r.s.c(colCustomers).InsertOne(ctx, customerDoc{
		ID: c.ID, Email: c.Email, FirstName: c.FirstName, LastName: c.LastName,
		Address: c.Address, Phone: c.Phone, City: c.City, Governorate: c.Governorate,
		OrderIDs: ids, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	})
	return translate(err)
}

func (r customerRepo) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := r.s.c(colCustomers).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount != 1 {
		return domain.NotFound("customer", id)
	}
	return nil
}

func (r customerRepo) Patch(ctx context.Context, id string, ch domain.ProfileChanges) error {
	if len(ch) == 0 {
		return nil
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	for f, v := range ch {
		set[string(f)] = v
	}
	return r.updateOne(ctx, id, bson.M{"$set": set})
}

func (r customerRepo) AppendOrder(ctx context.Context, id, orderID string) error {
	return r.updateOne(ctx, id, bson.M{
		"$push": bson.M{"order_ids": orderID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

type wishlistRepo struct{ s *Store }

func (r wishlistRepo) FindByIdentity(ctx context.Context, id domain.Identity) (*domain.Wishlist, error) {
	var doc wishlistDoc
	err := r.s.c(colWishlists).FindOne(ctx, identityFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("wishlist", id.String())
	}
	if err != nil {
		return nil, translate(err)
	}
	ids := doc.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	return &domain.Wishlist{ID: doc.ID, Identity: id, ProductIDs: ids, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}, nil
}

func (r wishlistRepo) Save(ctx context.Context, w *domain.Wishlist) error {
	doc := wishlistDoc{
		ID: w.ID, IdentityKind: string(w.Identity.Kind()), IdentityKey: w.Identity.Key(),
		ProductIDs: append([]string{}, w.ProductIDs...), CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt,
	}
	_, err := r.s.c(colWishlists).ReplaceOne(ctx, bson.M{"_id": w.ID}, doc, options.Replace().SetUpsert(true))
	return translate(err)
}

func (r wishlistRepo) Delete(ctx context.Context, id string) error {
	_, err := r.s.c(colWishlists).DeleteOne(ctx, bson.M{"_id": id})
	return translate(err)
}
