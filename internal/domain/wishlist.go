package domain

import (
	"time"

	"github.com/google/uuid"
)

type Wishlist struct {
	ID         string    `json:"id"`
	Identity   Identity  `json:"identity"`
	ProductIDs []string  `json:"productIds"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func NewWishlist(id Identity, now time.Time) *Wishlist {
	return &Wishlist{ID: uuid.NewString(), Identity: id, ProductIDs: []string{}, CreatedAt: now, UpdatedAt: now}
}

func (w *Wishlist) Has(productID string) bool {
	for _, p := range w.ProductIDs {
		if p == productID {
			return true
		}
	}
	return false
}

// Toggle adds the product when absent and removes it otherwise. It reports
// whether the product is now in the list.
func (w *Wishlist) Toggle(productID string) bool {
	for i, p := range w.ProductIDs {
		if p == productID {
			w.ProductIDs = append(w.ProductIDs[:i], w.ProductIDs[i+1:]...)
			return false
		}
	}
	w.ProductIDs = append(w.ProductIDs, productID)
	return true
}

// Union appends the products of other that w does not hold yet.
func (w *Wishlist) Union(other *Wishlist) {
	for _, p := range other.ProductIDs {
		if !w.Has(p) {
			w.ProductIDs = append(w.ProductIDs, p)
		}
	}
}

func (w *Wishlist) Clear() { w.ProductIDs = []string{} }

func (w *Wishlist) Clone() *Wishlist {
	cp := *w
	cp.ProductIDs = append([]string{}, w.ProductIDs...)
	return &cp
}
