package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-checkout/internal/cart"
	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/inventory"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
)

type Phase string

const (
	PhaseValidating Phase = "validating"
	PhaseCommitting Phase = "reserving-commit"
	PhasePersisting Phase = "persisting-order"
	PhaseClearing   Phase = "clearing-cart"
	PhaseNotifying  Phase = "notifying"
	PhaseDone       Phase = "done"
	PhaseAborted    Phase = "aborted"
)

// CheckoutError says where a checkout attempt stopped. Ref is set when a
// single cart line caused it.
type CheckoutError struct {
	Phase Phase
	Ref   domain.VariantRef
	Err   error
}

func (e *CheckoutError) Error() string {
	if e.Ref.Valid() {
		return fmt.Sprintf("checkout %s (%s): %v", e.Phase, e.Ref, e.Err)
	}
	return fmt.Sprintf("checkout %s: %v", e.Phase, e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// ErrDuplicateRequest is returned while another checkout holding the same
// idempotency key is still running.
var ErrDuplicateRequest = errors.New("checkout already in progress")

// Notifier tells the customer an order was placed.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *domain.Order) error
}

// IdempotencyStore remembers which order an idempotency key produced.
// Begin claims the key; when it was already claimed it returns the order id
// stored for it (empty while the first attempt is still running).
type IdempotencyStore interface {
	Begin(ctx context.Context, key string) (orderID string, fresh bool, err error)
	Complete(ctx context.Context, key, orderID string) error
	Abort(ctx context.Context, key string) error
}

const defaultCheckoutTimeout = 15 * time.Second

// Coordinator turns a cart into an order. Stock commits, the order insert,
// the cart clear and the customer upsert share one transaction; the
// notification runs after it and may fail without affecting the order.
type Coordinator struct {
	Store       port.Store
	Shipping    ShippingTable
	Notifier    Notifier         // optional
	Cache       OrderCache       // optional
	Idempotency IdempotencyStore // optional
	Timeout     time.Duration
	Now         func() time.Time
	NewCode     func() string

	// OnPhase observes every phase the attempt enters.
	OnPhase func(Phase)
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Coordinator) code() string {
	if c.NewCode != nil {
		return c.NewCode()
	}
	return Code()
}

func (c *Coordinator) enter(p Phase) {
	if c.OnPhase != nil {
		c.OnPhase(p)
	}
}

func (c *Coordinator) fail(p Phase, ref domain.VariantRef, err error) error {
	c.enter(PhaseAborted)
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return err
	}
	return &CheckoutError{Phase: p, Ref: ref, Err: err}
}

// idempotencyKey scopes a client key to the identity that sent it, so a
// replay can only return the caller's own order.
func idempotencyKey(id domain.Identity, key string) string {
	return id.String() + ":" + key
}

// CheckoutOnce is Checkout guarded by an idempotency key: a repeated call
// by the same identity with a key that already produced an order returns
// that order.
func (c *Coordinator) CheckoutOnce(ctx context.Context, key string, id domain.Identity, contact domain.ContactInfo) (*domain.Order, error) {
	if key == "" || c.Idempotency == nil || !id.Valid() {
		return c.Checkout(ctx, id, contact)
	}
	key = idempotencyKey(id, key)
	orderID, fresh, err := c.Idempotency.Begin(ctx, key)
	if err != nil {
		log.Printf("checkout: idempotency unavailable, continuing without it: %v", err)
		return c.Checkout(ctx, id, contact)
	}
	if !fresh {
		if orderID == "" {
			return nil, ErrDuplicateRequest
		}
		o, err := c.Store.Orders().Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.Identity != id {
			return nil, ErrDuplicateRequest
		}
		return o, nil
	}

	o, err := c.Checkout(ctx, id, contact)
	bg := context.WithoutCancel(ctx)
	if err != nil {
		if aerr := c.Idempotency.Abort(bg, key); aerr != nil {
			log.Printf("checkout: release idempotency key %s: %v", key, aerr)
		}
		return nil, err
	}
	if cerr := c.Idempotency.Complete(bg, key, o.ID); cerr != nil {
		log.Printf("checkout: store idempotency key %s: %v", key, cerr)
	}
	return o, nil
}

// Checkout places an order for the identity's cart. Once the transaction
// starts it runs detached from ctx's cancellation, bounded by Timeout, so a
// client that goes away cannot leave it half applied.
func (c *Coordinator) Checkout(ctx context.Context, id domain.Identity, contact domain.ContactInfo) (*domain.Order, error) {
	c.enter(PhaseValidating)
	if !id.Valid() {
		return nil, c.fail(PhaseValidating, domain.VariantRef{}, domain.NewValidationError("identity", "session or account id is required"))
	}
	contact, err := ValidateContact(contact)
	if err != nil {
		return nil, c.fail(PhaseValidating, domain.VariantRef{}, err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCheckoutTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var (
		order *domain.Order
		phase Phase
		ref   domain.VariantRef
	)
	err = port.WithRetry(ctx, c.Store, "checkout", func(ctx context.Context, r port.Repositories) error {
		phase, ref = PhaseValidating, domain.VariantRef{}
		var err error
		order, err = c.place(ctx, r, id, contact, &phase, &ref)
		return err
	})
	if errors.Is(err, domain.ErrWriteConflict) {
		err = fmt.Errorf("%w: %w", domain.ErrCheckoutConflict, err)
	}
	if err != nil {
		return nil, c.fail(phase, ref, err)
	}

	if c.Cache != nil {
		if err := c.Cache.Put(ctx, order); err != nil {
			log.Printf("checkout: cache order %s: %v", order.RandomID, err)
		}
	}

	c.enter(PhaseNotifying)
	if c.Notifier != nil {
		if err := c.Notifier.OrderPlaced(ctx, order); err != nil {
			log.Printf("checkout: notify order %d (%s): %v", order.OrderNumber, order.Contact.Email, err)
		}
	}
	c.enter(PhaseDone)
	return order, nil
}

// place runs inside the transaction. phase and ref track progress so the
// caller can report where it stopped.
func (c *Coordinator) place(ctx context.Context, r port.Repositories, id domain.Identity, contact domain.ContactInfo, phase *Phase, ref *domain.VariantRef) (*domain.Order, error) {
	crt, err := r.Carts().FindByIdentity(ctx, id)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && crt.IsEmpty()) {
		return nil, domain.ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}

	*phase = PhaseCommitting
	c.enter(*phase)
	ledger := inventory.NewLedger(r.Variants())
	products := map[string]*domain.Product{}
	lines := make([]domain.OrderLine, 0, len(crt.Lines))
	subtotal := decimal.Zero
	for _, l := range cart.SortedLines(crt) {
		*ref = l.VariantRef
		p, ok := products[l.ProductID]
		if !ok {
			if p, err = r.Products().Get(ctx, l.ProductID); err != nil {
				return nil, err
			}
			products[l.ProductID] = p
		}
		if _, err := ledger.Commit(ctx, l.VariantRef, l.Quantity); err != nil {
			return nil, err
		}
		unit := p.FinalPrice()
		total := unit.Mul(decimal.NewFromInt(int64(l.Quantity)))
		lines = append(lines, domain.OrderLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Color:       l.Color,
			UnitPrice:   unit,
			Quantity:    l.Quantity,
			LineTotal:   total,
		})
		subtotal = subtotal.Add(total)
	}
	*ref = domain.VariantRef{}

	*phase = PhasePersisting
	c.enter(*phase)
	n, err := NewSequencer(r.Counters()).Next(ctx, OrderCounter)
	if err != nil {
		return nil, err
	}
	now := c.now()
	shipping := c.Shipping.Fee(contact.Governorate)
	o := &domain.Order{
		ID:           uuid.NewString(),
		OrderNumber:  n,
		RandomID:     c.code(),
		Identity:     id,
		Lines:        lines,
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Total:        subtotal.Add(shipping),
		Contact:      contact,
		Status:       domain.StatusPlaced,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.Orders().Create(ctx, o); err != nil {
		return nil, err
	}

	*phase = PhaseClearing
	c.enter(*phase)
	crt.Clear()
	crt.UpdatedAt = now
	if err := r.Carts().Save(ctx, crt); err != nil {
		return nil, err
	}
	if err := upsertCustomer(ctx, r, o, now); err != nil {
		return nil, err
	}
	return o, nil
}

// upsertCustomer creates the profile on a first order for the email, or
// patches the contact fields that changed, and links the order.
func upsertCustomer(ctx context.Context, r port.Repositories, o *domain.Order, now time.Time) error {
	cust, err := r.Customers().FindByEmail(ctx, o.Contact.Email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		cust = domain.CustomerFromContact(uuid.NewString(), o.Contact, now)
		if err := r.Customers().Create(ctx, cust); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if ch := cust.Diff(o.Contact); len(ch) > 0 {
			if err := r.Customers().Patch(ctx, cust.ID, ch); err != nil {
				return err
			}
		}
	}
	return r.Customers().AppendOrder(ctx, cust.ID, o.ID)
}
