package port

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

// WithRetry runs fn in a transaction and retries it once when the store
// reports a write conflict. The second conflict is returned to the caller.
func WithRetry(ctx context.Context, s Store, op string, fn func(ctx context.Context, r Repositories) error) error {
	err := s.InTx(ctx, fn)
	if !errors.Is(err, domain.ErrWriteConflict) {
		return err
	}
	log.Printf("%s: write conflict, retrying once: %v", op, err)
	return s.InTx(ctx, fn)
}

// Backoff bounds WithBackoff. Delays double from Base up to Max, with jitter.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// HotVariant suits short transactions that touch a shared variant counter.
// Document stores abort concurrent writers to one document instead of
// queueing them, so several attempts are needed under contention.
var HotVariant = Backoff{Attempts: 16, Base: 2 * time.Millisecond, Max: 100 * time.Millisecond}

// WithBackoff runs fn in a transaction, retrying write conflicts up to
// b.Attempts times. The last conflict is returned to the caller.
func WithBackoff(ctx context.Context, s Store, op string, b Backoff, fn func(ctx context.Context, r Repositories) error) error {
	delay := b.Base
	for attempt := 1; ; attempt++ {
		err := s.InTx(ctx, fn)
		if !errors.Is(err, domain.ErrWriteConflict) || attempt >= b.Attempts {
			return err
		}
		if attempt == 1 {
			log.Printf("%s: write conflict, retrying: %v", op, err)
		}

		wait := delay/2 + rand.N(delay/2+1)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		delay = min(delay*2, b.Max)
	}
}
