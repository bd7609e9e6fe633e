package kafka

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducer_FlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "t", 16)
	p.Start(context.Background())

	for i := 0; i < 10; i++ {
		if err := p.Publish(context.Background(), []byte("k"), []byte{byte(i)}, EventHeaders("E", 1)...); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	p.Close()
	p.Close()
	p.WaitClosed()

	if len(w.msgs) != 10 || !w.closed {
		t.Fatalf("expected 10 flushed messages and a closed writer, got %d closed=%v", len(w.msgs), w.closed)
	}
	if string(w.msgs[0].Headers[0].Value) != "E" || string(w.msgs[0].Headers[1].Value) != "1" {
		t.Errorf("unexpected headers %+v", w.msgs[0].Headers)
	}
	if err := p.Publish(context.Background(), nil, nil); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

func TestProducer_StopsWithContext(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "t", 1)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() { p.WaitClosed(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not stop on context cancel")
	}
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

// runUntilCommitted starts c and stops it once n offsets are committed.
func runUntilCommitted(t *testing.T, c *Consumer, r *fakeReader, h Handler, n int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()

	deadline := time.After(5 * time.Second)
	for len(r.offsets()) < n {
		select {
		case <-deadline:
			t.Fatalf("expected %d commits, got %v", n, r.offsets())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("start: %v", err)
	}
}

func TestConsumer_RetriesBeforeCommit(t *testing.T) {
	r := &fakeReader{}
	for i := int64(0); i < 6; i++ {
		r.queue = append(r.queue, kafka.Message{Offset: i})
	}
	c := newConsumer(r, 3)
	c.Backoff = time.Millisecond

	var mu sync.Mutex
	calls := map[int64]int{}
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls[m.Offset]++
		// odd offsets fail twice, then go through
		if m.Offset%2 == 1 && calls[m.Offset] < 3 {
			return errors.New("smtp unavailable")
		}
		return nil
	}
	runUntilCommitted(t, c, r, h, 6)

	got := r.offsets()
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, off := range got {
		if off != int64(i) {
			t.Fatalf("expected offsets 0..5 committed once each, got %v", got)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	for off, n := range calls {
		want := 1
		if off%2 == 1 {
			want = 3
		}
		if n != want {
			t.Errorf("offset %d handled %d times, want %d", off, n, want)
		}
	}
}

// A failed message is retried to success before any later offset on its
// partition is committed, so a later commit never skips it.
func TestConsumer_FailedMessageNotSkippedByLaterCommit(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Partition: 0, Offset: 10}, {Partition: 0, Offset: 11}}}
	c := newConsumer(r, 1)
	c.Backoff = time.Millisecond

	var mu sync.Mutex
	var order []int64
	failed := false
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, m.Offset)
		if m.Offset == 10 && !failed {
			failed = true
			return errors.New("send failed")
		}
		return nil
	}
	runUntilCommitted(t, c, r, h, 2)

	if got := r.offsets(); len(got) != 2 || got[0] != 10 || got[1] != 11 {
		t.Errorf("expected 10 committed before 11, got %v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 10 || order[1] != 10 {
		t.Errorf("expected offset 10 retried in place, got %v", order)
	}
}

func TestConsumer_GivesUpAfterAttempts(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 0}, {Offset: 1}}}
	c := newConsumer(r, 1)
	c.Attempts, c.Backoff = 3, time.Millisecond

	var calls atomic.Int32
	h := func(_ context.Context, m kafka.Message) error {
		if m.Offset == 0 {
			calls.Add(1)
			return errors.New("always down")
		}
		return nil
	}
	runUntilCommitted(t, c, r, h, 2)

	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
	if got := r.offsets(); got[0] != 0 {
		t.Errorf("expected the exhausted message committed first, got %v", got)
	}
}
