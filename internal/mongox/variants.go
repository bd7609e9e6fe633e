package mongox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

type variantRepo struct{ s *Store }

func refFilter(ref domain.VariantRef) bson.M {
	return bson.M{"product_id": ref.ProductID, "color": ref.Color}
}

func (r variantRepo) update(ctx context.Context, filter bson.M, update any) (domain.Variant, error) {
	var doc variantDoc
	err := r.s.c(colVariants).FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return domain.Variant{}, err
	}
	return doc.variant(), nil
}

func (r variantRepo) Reserve(ctx context.Context, ref domain.VariantRef, qty int) (domain.Variant, error) {
	filter := refFilter(ref)
	filter["$expr"] = bson.M{"$gte": bson.A{bson.M{"$subtract": bson.A{"$stock", "$reserved"}}, qty}}
	v, err := r.update(ctx, filter, bson.M{"$inc": bson.M{"reserved": qty}})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r.shortfall(ctx, ref, qty, domain.Variant.Available)
	}
	return v, translate(err)
}

func (r variantRepo) Release(ctx context.Context, ref domain.VariantRef, qty int) (domain.Variant, error) {
	floor := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"reserved": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$reserved", qty}}}},
	}}}}
	v, err := r.update(ctx, refFilter(ref), floor)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Variant{}, domain.NotFound("variant", ref.String())
	}
	return v, translate(err)
}

func (r variantRepo) Commit(ctx context.Context, ref domain.VariantRef, qty int) (domain.Variant, error) {
	filter := refFilter(ref)
	filter["stock"] = bson.M{"$gte": qty}
	filter["reserved"] = bson.M{"$gte": qty}
	v, err := r.update(ctx, filter, bson.M{"$inc": bson.M{"stock": -qty, "reserved": -qty}})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r.shortfall(ctx, ref, qty, func(cur domain.Variant) int { return min(cur.Stock, cur.Reserved) })
	}
	return v, translate(err)
}

func (r variantRepo) Get(ctx context.Context, ref domain.VariantRef) (domain.Variant, error) {
	var doc variantDoc
	err := r.s.c(colVariants).FindOne(ctx, refFilter(ref)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Variant{}, domain.NotFound("variant", ref.String())
	}
	if err != nil {
		return domain.Variant{}, translate(err)
	}
	return doc.variant(), nil
}

func (r variantRepo) shortfall(ctx context.Context, ref domain.VariantRef, qty int, available func(domain.Variant) int) (domain.Variant, error) {
	cur, err := r.Get(ctx, ref)
	if err != nil {
		return domain.Variant{}, err
	}
	return domain.Variant{}, &domain.StockError{Ref: ref, Requested: qty, Available: available(cur)}
}

type productRepo struct{ s *Store }

func (r productRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	var doc productDoc
	err := r.s.c(colProducts).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("product", id)
	}
	if err != nil {
		return nil, translate(err)
	}
	p := &domain.Product{ID: doc.ID, Name: doc.Name, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}
	if p.Price, err = fromD128(doc.Price); err != nil {
		return nil, translate(err)
	}
	if p.DiscountPct, err = fromD128(doc.DiscountPct); err != nil {
		return nil, translate(err)
	}
	if p.MarkupPct, err = fromD128(doc.MarkupPct); err != nil {
		return nil, translate(err)
	}

	cur, err := r.s.c(colVariants).Find(ctx, bson.M{"product_id": id},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "color", Value: 1}}))
	if err != nil {
		return nil, translate(err)
	}
	var vs []variantDoc
	if err := cur.All(ctx, &vs); err != nil {
		return nil, translate(err)
	}
	for _, v := range vs {
		p.Variants = append(p.Variants, v.variant())
	}
	return p, nil
}

// Upsert never writes reserved from input. A variant whose reserved count
// exceeds the new stock fails the filter; the upsert then collides with the
// unique (product_id, color) key, which is reported as a validation error.
// Callers run it inside InTx so a rejected variant rolls back the rest.
func (r productRepo) Upsert(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	var prev productDoc
	err := r.s.c(colProducts).FindOne(ctx, bson.M{"_id": p.ID}).Decode(&prev)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		p.CreatedAt = now
	case err != nil:
		return translate(err)
	default:
		p.CreatedAt = prev.CreatedAt
	}
	p.UpdatedAt = now

	doc := productDoc{
		ID: p.ID, Name: p.Name,
		Price: toD128(p.Price), DiscountPct: toD128(p.DiscountPct), MarkupPct: toD128(p.MarkupPct),
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
	if _, err := r.s.c(colProducts).ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return translate(err)
	}

	colors := make([]string, 0, len(p.Variants))
	for i := range p.Variants {
		v := &p.Variants[i]
		filter := refFilter(domain.VariantRef{ProductID: p.ID, Color: v.Color})
		filter["reserved"] = bson.M{"$lte": v.Stock}
		var out variantDoc
		err := r.s.c(colVariants).FindOneAndUpdate(ctx, filter, bson.M{
			"$set":         bson.M{"stock": v.Stock, "position": i},
			"$setOnInsert": bson.M{"reserved": 0},
		}, options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&out)
		if mongo.IsDuplicateKeyError(err) {
			return domain.NewValidationError("variants", "stock below reserved for "+v.Color)
		}
		if err != nil {
			return translate(err)
		}
		v.Reserved = out.Reserved
		colors = append(colors, v.Color)
	}

	dropped := bson.M{"product_id": p.ID, "color": bson.M{"$nin": colors}}
	n, err := r.s.c(colVariants).CountDocuments(ctx, bson.M{"product_id": p.ID, "color": bson.M{"$nin": colors}, "reserved": bson.M{"$gt": 0}})
	if err != nil {
		return translate(err)
	}
	if n > 0 {
		return domain.NewValidationError("variants", "cannot drop a reserved variant")
	}
	_, err = r.s.c(colVariants).DeleteMany(ctx, dropped)
	return translate(err)
}
