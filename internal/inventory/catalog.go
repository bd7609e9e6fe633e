package inventory

import (
	"context"
	"strings"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
)

// Catalog seeds and reads products. It sets stock but never reserved.
type Catalog struct {
	Store port.Store
}

func (c *Catalog) Upsert(ctx context.Context, p *domain.Product) error {
	p.ID = strings.TrimSpace(p.ID)
	if err := p.Validate(); err != nil {
		return err
	}
	return port.WithRetry(ctx, c.Store, "catalog upsert", func(ctx context.Context, r port.Repositories) error {
		return r.Products().Upsert(ctx, p)
	})
}

func (c *Catalog) Get(ctx context.Context, id string) (*domain.Product, error) {
	return c.Store.Products().Get(ctx, id)
}
