package httpx

import (
	"errors"
	"log"
	"net/http"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
)

type errorBody struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Phase     string            `json:"phase,omitempty"`
	ProductID string            `json:"productId,omitempty"`
	Color     string            `json:"color,omitempty"`
	Available *int              `json:"available,omitempty"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrCheckoutConflict),
		errors.Is(err, domain.ErrWriteConflict),
		errors.Is(err, orders.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	body := errorBody{Error: err.Error()}
	if code == http.StatusInternalServerError {
		log.Printf("http: %s %s: %v", r.Method, r.URL.Path, err)
		body.Error = "internal error"
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Error, body.Fields = "validation failed", verr.Fields
	}
	var ce *orders.CheckoutError
	if errors.As(err, &ce) {
		body.Phase = string(ce.Phase)
		body.ProductID, body.Color = ce.Ref.ProductID, ce.Ref.Color
	}
	var se *domain.StockError
	if errors.As(err, &se) {
		body.ProductID, body.Color = se.Ref.ProductID, se.Ref.Color
		body.Available = &se.Available
	}
	writeJSON(w, code, body)
}
