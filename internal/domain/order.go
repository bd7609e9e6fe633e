package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPlaced    OrderStatus = "placed"
	StatusShipping  OrderStatus = "shipping"
	StatusDelivered OrderStatus = "delivered"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPlaced, StatusShipping, StatusDelivered:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentInstaPay     PaymentMethod = "instaPay"
	PaymentVodafoneCash PaymentMethod = "vodafoneCash"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCreditCard, PaymentInstaPay, PaymentVodafoneCash:
		return true
	}
	return false
}

// ContactInfo is what the customer types at checkout.
type ContactInfo struct {
	Email         string        `json:"email"`
	FirstName     string        `json:"firstName"`
	LastName      string        `json:"lastName"`
	Address       string        `json:"address"`
	Phone         string        `json:"phone"`
	City          string        `json:"city"`
	Governorate   string        `json:"governorate"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// OrderLine is a snapshot: later catalog edits never reach it.
type OrderLine struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Color       string          `json:"color"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type Order struct {
	ID           string          `json:"id"`
	OrderNumber  int64           `json:"orderNumber"`
	RandomID     string          `json:"randomId"`
	Identity     Identity        `json:"identity"`
	Lines        []OrderLine     `json:"lines"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	Total        decimal.Decimal `json:"total"`
	Contact      ContactInfo     `json:"contact"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Lines = append([]OrderLine(nil), o.Lines...)
	return &cp
}

// OrderPatch is the administrative edit of an order. Lines and totals are
// not editable. Nil fields are left untouched.
type OrderPatch struct {
	Status      *OrderStatus `json:"status,omitempty"`
	Email       *string      `json:"email,omitempty"`
	FirstName   *string      `json:"firstName,omitempty"`
	LastName    *string      `json:"lastName,omitempty"`
	Address     *string      `json:"address,omitempty"`
	Phone       *string      `json:"phone,omitempty"`
	City        *string      `json:"city,omitempty"`
	Governorate *string      `json:"governorate,omitempty"`
}

// Columns maps the set fields to their storage column names.
func (p OrderPatch) Columns() map[string]any {
	out := map[string]any{}
	if p.Status != nil {
		out["status"] = string(*p.Status)
	}
	set := func(col string, v *string) {
		if v != nil {
			out[col] = *v
		}
	}
	set("email", p.Email)
	set("first_name", p.FirstName)
	set("last_name", p.LastName)
	set("address", p.Address)
	set("phone", p.Phone)
	set("city", p.City)
	set("governorate", p.Governorate)
	return out
}

func (p OrderPatch) IsEmpty() bool { return len(p.Columns()) == 0 }

// Apply copies the set fields onto o.
func (o *Order) Apply(p OrderPatch, now time.Time) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&o.Contact.Email, p.Email)
	set(&o.Contact.FirstName, p.FirstName)
	set(&o.Contact.LastName, p.LastName)
	set(&o.Contact.Address, p.Address)
	set(&o.Contact.Phone, p.Phone)
	set(&o.Contact.City, p.City)
	set(&o.Contact.Governorate, p.Governorate)
	o.UpdatedAt = now
}

// ProfileChanges returns the customer-profile part of the patch.
func (p OrderPatch) ProfileChanges() ProfileChanges {
	ch := ProfileChanges{}
	add := func(f ProfileField, v *string) {
		if v != nil && *v != "" {
			ch[f] = *v
		}
	}
	add(FieldFirstName, p.FirstName)
	add(FieldLastName, p.LastName)
	add(FieldAddress, p.Address)
	add(FieldPhone, p.Phone)
	add(FieldCity, p.City)
	add(FieldGovernorate, p.Governorate)
	return ch
}
