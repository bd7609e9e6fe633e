package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
)

type publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// KafkaNotifier publishes an OrderPlaced event; the notifier service sends
// the mail.
type KafkaNotifier struct {
	Producer publisher
	Service  string
}

func (n *KafkaNotifier) OrderPlaced(ctx context.Context, o *domain.Order) error {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(orders.OrderPlacedPayload{Order: *o}),
	}
	return n.Producer.Publish(ctx, orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(orders.EventOrderPlaced, 1)...)
}

type deduper interface {
	First(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Handler consumes OrderPlaced events and mails the invoice. Each event id
// is sent once; a failed send clears the mark so the consumer's next
// attempt sends it again.
type Handler struct {
	Sender Sender
	Dedup  deduper // optional
}

func (h *Handler) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		// a poison message is logged and committed
		log.Printf("notify: drop undecodable message at offset %d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	if h.Dedup != nil {
		first, err := h.Dedup.First(ctx, env.EventID)
		if err != nil {
			return fmt.Errorf("dedup %s: %w", env.EventID, err)
		}
		if !first {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		log.Printf("notify: drop event %s: %v", env.EventID, err)
		return nil
	}
	msg, err := Invoice(&p.Order)
	if err == nil {
		err = h.Sender.Send(ctx, msg)
	}
	if err != nil {
		if h.Dedup != nil {
			if ferr := h.Dedup.Forget(ctx, env.EventID); ferr != nil {
				log.Printf("notify: forget %s: %v", env.EventID, ferr)
			}
		}
		return fmt.Errorf("order %s: %w", p.Order.ID, err)
	}
	log.Printf("notify: sent confirmation for order #%s to %s", p.Order.RandomID, p.Order.Contact.Email)
	return nil
}
