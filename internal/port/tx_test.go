package port

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

// conflictStore fails the first n transactions with a write conflict.
type conflictStore struct {
	Store
	n, calls int
}

func (s *conflictStore) InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	s.calls++
	if s.calls <= s.n {
		return fmt.Errorf("tx: %w", domain.ErrWriteConflict)
	}
	return fn(ctx, nil)
}

var fast = Backoff{Attempts: 5, Base: time.Millisecond, Max: 2 * time.Millisecond}

func noop(context.Context, Repositories) error { return nil }

func TestWithRetry_RetriesOnce(t *testing.T) {
	s := &conflictStore{n: 1}
	if err := WithRetry(context.Background(), s, "op", noop); err != nil || s.calls != 2 {
		t.Errorf("expected success on the second try, got %v after %d", err, s.calls)
	}
	s = &conflictStore{n: 2}
	if err := WithRetry(context.Background(), s, "op", noop); !errors.Is(err, domain.ErrWriteConflict) || s.calls != 2 {
		t.Errorf("expected the second conflict, got %v after %d", err, s.calls)
	}
}

func TestWithBackoff(t *testing.T) {
	s := &conflictStore{n: 4}
	if err := WithBackoff(context.Background(), s, "op", fast, noop); err != nil || s.calls != 5 {
		t.Errorf("expected success on attempt 5, got %v after %d", err, s.calls)
	}

	s = &conflictStore{n: 10}
	if err := WithBackoff(context.Background(), s, "op", fast, noop); !errors.Is(err, domain.ErrWriteConflict) || s.calls != fast.Attempts {
		t.Errorf("expected the conflict after %d attempts, got %v after %d", fast.Attempts, err, s.calls)
	}

	boom := errors.New("boom")
	s = &conflictStore{}
	err := WithBackoff(context.Background(), s, "op", fast, func(context.Context, Repositories) error { return boom })
	if !errors.Is(err, boom) || s.calls != 1 {
		t.Errorf("other errors must not be retried, got %v after %d", err, s.calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s = &conflictStore{n: 10}
	if err := WithBackoff(ctx, s, "op", Backoff{Attempts: 5, Base: time.Second, Max: time.Second}, noop); !errors.Is(err, domain.ErrWriteConflict) || s.calls != 1 {
		t.Errorf("a done context stops retrying, got %v after %d", err, s.calls)
	}
}
