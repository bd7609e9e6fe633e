package mongox

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ariefcatur/go-storefront-checkout/internal/cart/carttest"
	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
	"github.com/ariefcatur/go-storefront-checkout/internal/storetest"
)

// openStore needs MONGO_TEST_URI pointing at a replica set; transactions do
// not work on a standalone server.
func openStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := Connect(ctx, uri)
	if err != nil {
		t.Skipf("mongo not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	s := New(client, "checkout_test")
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) port.Store { return openStore(t) })
}

func TestCartService(t *testing.T) {
	carttest.Run(t, func(t *testing.T) port.Store { return openStore(t) })
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no documents", mongo.ErrNoDocuments, domain.ErrNotFound},
		{"write conflict", mongo.CommandError{Code: codeWriteConflict, Message: "WriteConflict"}, domain.ErrWriteConflict},
		{"transient label", mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}}, domain.ErrWriteConflict},
		{"duplicate key", mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000"}}}, domain.ErrWriteConflict},
		{"domain passthrough", domain.ErrEmptyCart, domain.ErrEmptyCart},
		{"other", errors.New("socket closed"), domain.ErrPersistence},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := translate(tc.in); !errors.Is(got, tc.want) {
				t.Errorf("translate(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
