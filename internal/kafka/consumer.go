package kafka

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message was processed and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fans messages out to workers and commits each one after its
// handler returns. Offsets commit per partition, so a later commit covers
// every earlier message: a failing message is retried in place, Attempts
// times with doubling Backoff, and then logged and committed.
type Consumer struct {
	r       messageReader
	workers int

	Attempts int
	Backoff  time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers)
}

func newConsumer(r messageReader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, Attempts: 5, Backoff: 250 * time.Millisecond}
}

// handle runs h until it succeeds, the attempts run out or ctx is done.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) error {
	delay := c.Backoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = h(ctx, m); err == nil || attempt >= c.Attempts {
			return err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		delay *= 2
	}
}

// Start dispatches messages to the workers until ctx is done or the reader
// fails. It returns nil on shutdown.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	errs := make(chan error, c.workers)
	report := func(err error) {
		select {
		case errs <- err:
		default:
			log.Printf("kafka: worker error: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if err := c.handle(ctx, h, m); err != nil {
					if ctx.Err() != nil {
						// shutting down; leave it uncommitted
						report(err)
						continue
					}
					log.Printf("kafka: giving up on %s[%d]@%d after %d attempts: %v", m.Topic, m.Partition, m.Offset, c.Attempts, err)
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					report(err)
				}
			}
		}()
	}
	stop := func() {
		close(jobs)
		wg.Wait()
	}

	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			stop()
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			stop()
			return nil
		}

		// drain without blocking so a failing worker never stalls the reader
		select {
		case e := <-errs:
			log.Printf("kafka: worker error: %v", e)
			time.Sleep(200 * time.Millisecond)
		default:
		}
	}
}
