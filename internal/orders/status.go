package orders

import "github.com/ariefcatur/go-storefront-checkout/internal/domain"

var validNext = map[domain.OrderStatus]map[domain.OrderStatus]bool{
	domain.StatusPlaced:    {domain.StatusShipping: true},
	domain.StatusShipping:  {domain.StatusDelivered: true},
	domain.StatusDelivered: {},
}

// CanTransition reports whether an order may move from one status to
// another. Setting the current status again is allowed.
func CanTransition(from, to domain.OrderStatus) bool {
	if from == to {
		return to.Valid()
	}
	return validNext[from][to]
}
