package orders

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
)

// OrderCounter is the counter behind order numbers.
const OrderCounter = "order"

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLen      = 4
)

// Sequencer hands out order numbers from a shared counter in the store, so
// every service instance draws from the same sequence.
type Sequencer struct {
	counters port.CounterRepository
}

func NewSequencer(counters port.CounterRepository) *Sequencer {
	return &Sequencer{counters: counters}
}

func (s *Sequencer) Next(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, domain.NewValidationError("name", "required")
	}
	n, err := s.counters.Next(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("next %s: %w", name, err)
	}
	return n, nil
}

// Code returns a short public order code. Codes are not unique; lookups
// resolve to the most recent order.
func Code() string {
	b := make([]byte, codeLen)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}
