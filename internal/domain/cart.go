package domain

import (
	"time"

	"github.com/google/uuid"
)

type CartLine struct {
	VariantRef
	Quantity int `json:"quantity"`
}

// Cart is owned by exactly one identity. Lines never carry a quantity below 1.
type Cart struct {
	ID        string     `json:"id"`
	Identity  Identity   `json:"identity"`
	Lines     []CartLine `json:"lines"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func NewCart(id Identity, now time.Time) *Cart {
	return &Cart{
		ID:        uuid.NewString(),
		Identity:  id,
		Lines:     []CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Cart) index(ref VariantRef) int {
	for i, l := range c.Lines {
		if l.VariantRef == ref {
			return i
		}
	}
	return -1
}

func (c *Cart) Line(ref VariantRef) (CartLine, bool) {
	if i := c.index(ref); i >= 0 {
		return c.Lines[i], true
	}
	return CartLine{}, false
}

func (c *Cart) Quantity(ref VariantRef) int {
	l, _ := c.Line(ref)
	return l.Quantity
}

// SetQuantity writes the line quantity; qty <= 0 drops the line.
func (c *Cart) SetQuantity(ref VariantRef, qty int) {
	i := c.index(ref)
	switch {
	case qty <= 0 && i >= 0:
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	case qty <= 0:
	case i >= 0:
		c.Lines[i].Quantity = qty
	default:
		c.Lines = append(c.Lines, CartLine{VariantRef: ref, Quantity: qty})
	}
}

func (c *Cart) Clear() { c.Lines = []CartLine{} }

func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

func (c *Cart) TotalQuantity() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Lines = append([]CartLine(nil), c.Lines...)
	if cp.Lines == nil {
		cp.Lines = []CartLine{}
	}
	return &cp
}
