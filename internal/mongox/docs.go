package mongox

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

func toD128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		// decimal.String never yields a form ParseDecimal128 rejects
		panic(err)
	}
	return v
}

func fromD128(v primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(v.String())
}

type productDoc struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Price       primitive.Decimal128 `bson:"price"`
	DiscountPct primitive.Decimal128 `bson:"discount_pct"`
	MarkupPct   primitive.Decimal128 `bson:"markup_pct"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

type variantDoc struct {
	ProductID string `bson:"product_id"`
	Color     string `bson:"color"`
	Position  int    `bson:"position"`
	Stock     int    `bson:"stock"`
	Reserved  int    `bson:"reserved"`
}

func (d variantDoc) variant() domain.Variant {
	return domain.Variant{Color: d.Color, Stock: d.Stock, Reserved: d.Reserved}
}

type cartLineDoc struct {
	ProductID string `bson:"product_id"`
	Color     string `bson:"color"`
	Quantity  int    `bson:"quantity"`
}

type cartDoc struct {
	ID           string        `bson:"_id"`
	IdentityKind string        `bson:"identity_kind"`
	IdentityKey  string        `bson:"identity_key"`
	Lines        []cartLineDoc `bson:"lines"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

func newCartDoc(c *domain.Cart) cartDoc {
	d := cartDoc{
		ID:           c.ID,
		IdentityKind: string(c.Identity.Kind()),
		IdentityKey:  c.Identity.Key(),
		Lines:        make([]cartLineDoc, 0, len(c.Lines)),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	for _, l := range c.Lines {
		d.Lines = append(d.Lines, cartLineDoc{ProductID: l.ProductID, Color: l.Color, Quantity: l.Quantity})
	}
	return d
}

func (d cartDoc) cart() (*domain.Cart, error) {
	id, err := domain.ParseIdentity(d.IdentityKind, d.IdentityKey)
	if err != nil {
		return nil, err
	}
	c := &domain.Cart{ID: d.ID, Identity: id, Lines: make([]domain.CartLine, 0, len(d.Lines)), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
	for _, l := range d.Lines {
		c.Lines = append(c.Lines, domain.CartLine{VariantRef: domain.VariantRef{ProductID: l.ProductID, Color: l.Color}, Quantity: l.Quantity})
	}
	return c, nil
}

type orderLineDoc struct {
	ProductID   string               `bson:"product_id"`
	ProductName string               `bson:"product_name"`
	Color       string               `bson:"color"`
	UnitPrice   primitive.Decimal128 `bson:"unit_price"`
	Quantity    int                  `bson:"quantity"`
	LineTotal   primitive.Decimal128 `bson:"line_total"`
}

// orderDoc keeps contact fields flat so domain.OrderPatch.Columns maps
// straight onto $set.
type orderDoc struct {
	ID            string               `bson:"_id"`
	OrderNumber   int64                `bson:"order_number"`
	RandomID      string               `bson:"random_id"`
	IdentityKind  string               `bson:"identity_kind"`
	IdentityKey   string               `bson:"identity_key"`
	Lines         []orderLineDoc       `bson:"lines"`
	Subtotal      primitive.Decimal128 `bson:"subtotal"`
	ShippingCost  primitive.Decimal128 `bson:"shipping_cost"`
	Total         primitive.Decimal128 `bson:"total"`
	Email         string               `bson:"email"`
	FirstName     string               `bson:"first_name"`
	LastName      string               `bson:"last_name"`
	Address       string               `bson:"address"`
	Phone         string               `bson:"phone"`
	City          string               `bson:"city"`
	Governorate   string               `bson:"governorate"`
	PaymentMethod string               `bson:"payment_method"`
	Status        string               `bson:"status"`
	CreatedAt     time.Time            `bson:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at"`
}

func newOrderDoc(o *domain.Order) orderDoc {
	d := orderDoc{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		RandomID:      o.RandomID,
		IdentityKind:  string(o.Identity.Kind()),
		IdentityKey:   o.Identity.Key(),
		Lines:         make([]orderLineDoc, 0, len(o.Lines)),
		Subtotal:      toD128(o.Subtotal),
		ShippingCost:  toD128(o.ShippingCost),
		Total:         toD128(o.Total),
		Email:         o.Contact.Email,
		FirstName:     o.Contact.FirstName,
		LastName:      o.Contact.LastName,
		Address:       o.Contact.Address,
		Phone:         o.Contact.Phone,
		City:          o.Contact.City,
		Governorate:   o.Contact.Governorate,
		PaymentMethod: string(o.Contact.PaymentMethod),
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	for _, l := range o.Lines {
		d.Lines = append(d.Lines, orderLineDoc{
			ProductID: l.ProductID, ProductName: l.ProductName, Color: l.Color,
			UnitPrice: toD128(l.UnitPrice), Quantity: l.Quantity, LineTotal: toD128(l.LineTotal),
		})
	}
	return d
}

func (d orderDoc) order() (*domain.Order, error) {
	id, err := domain.ParseIdentity(d.IdentityKind, d.IdentityKey)
	if err != nil {
		return nil, err
	}
	o := &domain.Order{
		ID:          d.ID,
		OrderNumber: d.OrderNumber,
		RandomID:    d.RandomID,
		Identity:    id,
		Lines:       make([]domain.OrderLine, 0, len(d.Lines)),
		Contact: domain.ContactInfo{
			Email: d.Email, FirstName: d.FirstName, LastName: d.LastName, Address: d.Address,
			Phone: d.Phone, City: d.City, Governorate: d.Governorate,
			PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		},
		Status:    domain.OrderStatus(d.Status),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if o.Subtotal, err = fromD128(d.Subtotal); err != nil {
		return nil, err
	}
	if o.ShippingCost, err = fromD128(d.ShippingCost); err != nil {
		return nil, err
	}
	if o.Total, err = fromD128(d.Total); err != nil {
		return nil, err
	}
	for _, l := range d.Lines {
		line := domain.OrderLine{ProductID: l.ProductID, ProductName: l.ProductName, Color: l.Color, Quantity: l.Quantity}
		if line.UnitPrice, err = fromD128(l.UnitPrice); err != nil {
			return nil, err
		}
		if line.LineTotal, err = fromD128(l.LineTotal); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, line)
	}
	return o, nil
}

type customerDoc struct {
	ID          string    `bson:"_id"`
	Email       string    `bson:"email"`
	FirstName   string    `bson:"first_name"`
	LastName    string    `bson:"last_name"`
	Address     string    `bson:"address"`
	Phone       string    `bson:"phone"`
	City        string    `bson:"city"`
	Governorate string    `bson:"governorate"`
	OrderIDs    []string  `bson:"order_ids"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type wishlistDoc struct {
	ID           string    `bson:"_id"`
	IdentityKind string    `bson:"identity_kind"`
	IdentityKey  string    `bson:"identity_key"`
	ProductIDs   []string  `bson:"product_ids"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}
