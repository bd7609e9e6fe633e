package memstore

import (
	"testing"

	"github.com/ariefcatur/go-storefront-checkout/internal/cart/carttest"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
	"github.com/ariefcatur/go-storefront-checkout/internal/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) port.Store { return New() })
}

func TestCartService(t *testing.T) {
	carttest.Run(t, func(t *testing.T) port.Store { return New() })
}
