package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-checkout/internal/cart"
	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/inventory"
	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/wishlist"
)

// API wires the services onto routes. Every route below the auth
// middleware sees a resolved identity.
type API struct {
	Auth      *Auth
	Carts     *cart.Service
	Merger    *cart.Merger
	Wishlists *wishlist.Service
	Checkout  *orders.Coordinator
	Orders    *orders.Service
	Catalog   *inventory.Catalog
}

func (a *API) Register(r chi.Router) {
	r.Get("/products/{id}", a.getProduct)
	r.Get("/orders/{code}", a.getOrderByCode)

	r.Group(func(r chi.Router) {
		r.Use(a.Auth.Middleware)

		r.Get("/cart", a.getCart)
		r.Delete("/cart", a.emptyCart)
		r.Post("/cart/lines", a.addToCart)
		r.Patch("/cart/lines", a.changeQuantity)
		r.Delete("/cart/lines/{productId}/{color}", a.removeFromCart)
		r.Post("/cart/merge", a.mergeOnLogin)

		r.Get("/wishlist", a.getWishlist)
		r.Delete("/wishlist", a.emptyWishlist)
		r.Post("/wishlist/{productId}", a.toggleWishlist)

		r.Post("/checkout", a.checkout)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Put("/products/{id}", a.upsertProduct)
			r.Get("/orders/{id}", a.getOrder)
			r.Patch("/orders/{id}", a.updateOrder)
		})
	})
}

type lineReq struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
	Delta     int    `json:"delta"`
}

func (l lineReq) ref() domain.VariantRef {
	return domain.VariantRef{ProductID: strings.TrimSpace(l.ProductID), Color: strings.TrimSpace(l.Color)}
}

func (a *API) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := a.Carts.Get(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) addToCart(w http.ResponseWriter, r *http.Request) {
	var req lineReq
	if !decode(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	res, err := a.Carts.AddLine(r.Context(), IdentityFrom(r.Context()), req.ref(), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) changeQuantity(w http.ResponseWriter, r *http.Request) {
	var req lineReq
	if !decode(w, r, &req) {
		return
	}
	res, err := a.Carts.ChangeQuantity(r.Context(), IdentityFrom(r.Context()), req.ref(), req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) removeFromCart(w http.ResponseWriter, r *http.Request) {
	ref := lineReq{ProductID: chi.URLParam(r, "productId"), Color: chi.URLParam(r, "color")}.ref()
	c, err := a.Carts.RemoveLine(r.Context(), IdentityFrom(r.Context()), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) emptyCart(w http.ResponseWriter, r *http.Request) {
	c, err := a.Carts.Empty(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// mergeOnLogin folds the caller's guest session (cookie) into the account
// of the bearer token.
func (a *API) mergeOnLogin(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	if !id.IsAccount() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login required"})
		return
	}
	session := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		session = c.Value
	}
	res, err := a.Merger.MergeOnLogin(r.Context(), session, id.Key())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) getWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := a.Wishlists.Get(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (a *API) toggleWishlist(w http.ResponseWriter, r *http.Request) {
	wl, added, err := a.Wishlists.Toggle(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wishlist": wl, "added": added})
}

func (a *API) emptyWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := a.Wishlists.Empty(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (a *API) checkout(w http.ResponseWriter, r *http.Request) {
	var contact domain.ContactInfo
	if !decode(w, r, &contact) {
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	o, err := a.Checkout.CheckoutOnce(r.Context(), key, IdentityFrom(r.Context()), contact)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// orderSummary is the public view of an order. Codes are short enough to
// guess, so it carries no contact details and no owner.
type orderSummary struct {
	OrderNumber  int64              `json:"orderNumber"`
	RandomID     string             `json:"randomId"`
	Lines        []domain.OrderLine `json:"lines"`
	Subtotal     decimal.Decimal    `json:"subtotal"`
	ShippingCost decimal.Decimal    `json:"shippingCost"`
	Total        decimal.Decimal    `json:"total"`
	Governorate  string             `json:"governorate"`
	Status       domain.OrderStatus `json:"status"`
	CreatedAt    time.Time          `json:"createdAt"`
}

func summarize(o *domain.Order) orderSummary {
	return orderSummary{
		OrderNumber:  o.OrderNumber,
		RandomID:     o.RandomID,
		Lines:        o.Lines,
		Subtotal:     o.Subtotal,
		ShippingCost: o.ShippingCost,
		Total:        o.Total,
		Governorate:  o.Contact.Governorate,
		Status:       o.Status,
		CreatedAt:    o.CreatedAt,
	}
}

func (a *API) getOrderByCode(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(o))
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) updateOrder(w http.ResponseWriter, r *http.Request) {
	var p domain.OrderPatch
	if !decode(w, r, &p) {
		return
	}
	o, err := a.Orders.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := a.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p, "finalPrice": p.FinalPrice()})
}

func (a *API) upsertProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if !decode(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "id")
	if err := a.Catalog.Upsert(r.Context(), &p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
