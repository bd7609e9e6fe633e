package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// VariantRef addresses one color variant of a product. It is also the line
// key of a cart: a cart holds at most one line per ref.
type VariantRef struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
}

func (r VariantRef) String() string { return r.ProductID + "/" + r.Color }

func (r VariantRef) Valid() bool {
	return strings.TrimSpace(r.ProductID) != "" && strings.TrimSpace(r.Color) != ""
}

// Less orders refs by product then color; checkout commits lines in this
// order so concurrent checkouts lock variants in the same sequence.
func (r VariantRef) Less(o VariantRef) bool {
	if r.ProductID != o.ProductID {
		return r.ProductID < o.ProductID
	}
	return r.Color < o.Color
}

// Variant holds the counters of one color. 0 <= Reserved <= Stock.
type Variant struct {
	Color    string `json:"color"`
	Stock    int    `json:"stock"`
	Reserved int    `json:"reserved"`
}

func (v Variant) Available() int { return v.Stock - v.Reserved }

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	DiscountPct decimal.Decimal `json:"discount"`
	MarkupPct   decimal.Decimal `json:"markup"`
	Variants    []Variant       `json:"variants"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (p Product) Variant(color string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Color == color {
			return v, true
		}
	}
	return Variant{}, false
}

// FinalPrice applies discount and markup percentages to the list price.
func (p Product) FinalPrice() decimal.Decimal {
	discount := p.Price.Mul(p.DiscountPct).Div(hundred)
	markup := p.Price.Mul(p.MarkupPct).Div(hundred)
	return p.Price.Sub(discount).Add(markup).Round(2)
}

// Validate checks catalog input before it reaches the store.
func (p Product) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(p.ID) == "" {
		verr.Add("id", "required")
	}
	if strings.TrimSpace(p.Name) == "" {
		verr.Add("name", "required")
	}
	if p.Price.IsNegative() {
		verr.Add("price", "must not be negative")
	}
	if p.DiscountPct.IsNegative() || p.DiscountPct.GreaterThan(hundred) {
		verr.Add("discount", "must be between 0 and 100")
	}
	if p.MarkupPct.IsNegative() {
		verr.Add("markup", "must not be negative")
	}
	seen := map[string]bool{}
	for _, v := range p.Variants {
		switch {
		case strings.TrimSpace(v.Color) == "":
			verr.Add("variants", "color is required")
		case seen[v.Color]:
			verr.Add("variants", "duplicate color "+v.Color)
		case v.Stock < 0:
			verr.Add("variants", "stock must not be negative for "+v.Color)
		}
		seen[v.Color] = true
	}
	return verr.OrNil()
}
