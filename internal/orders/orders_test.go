package orders

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
	"github.com/ariefcatur/go-storefront-checkout/internal/memstore"
)

func TestSequencer_ConcurrentNextIsContiguous(t *testing.T) {
	seq := NewSequencer(memstore.New().Counters())
	const n = 100

	var (
		mu  sync.Mutex
		got []int64
		wg  sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(context.Background(), OrderCounter)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if len(got) != n {
		t.Fatalf("expected %d values, got %d", n, len(got))
	}
	for i, v := range got {
		if v != int64(i+1) {
			t.Fatalf("expected contiguous 1..%d, got %v", n, got)
		}
	}
	if _, err := seq.Next(context.Background(), " "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for blank name, got %v", err)
	}
}

func TestCode(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z0-9]{4}$`)
	for i := 0; i < 200; i++ {
		if c := Code(); !re.MatchString(c) {
			t.Fatalf("bad code %q", c)
		}
	}
}

func TestShippingTable(t *testing.T) {
	tbl := DefaultShippingTable()
	tests := []struct {
		gov  string
		want int64
	}{
		{"Cairo", 50},
		{"  giza ", 60},
		{"PORT SAID", 90},
		{"Aswan", 130},
		{"Matrouh", 100},
		{"", 100},
	}
	for _, tc := range tests {
		if got := tbl.Fee(tc.gov); !got.Equal(decimal.NewFromInt(tc.want)) {
			t.Errorf("Fee(%q) = %s, want %d", tc.gov, got, tc.want)
		}
	}

	custom := tbl.With(map[string]decimal.Decimal{"cairo": decimal.NewFromInt(45), "Matrouh": decimal.NewFromInt(150)})
	if !custom.Fee("Cairo").Equal(decimal.NewFromInt(45)) || !custom.Fee("Matrouh").Equal(decimal.NewFromInt(150)) {
		t.Errorf("overrides not applied")
	}
	if !tbl.Fee("Cairo").Equal(decimal.NewFromInt(50)) {
		t.Errorf("With must not modify the original table")
	}
}

func TestValidateContact(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.ContactInfo)
		fields []string
	}{
		{"valid", func(*domain.ContactInfo) {}, nil},
		{"email without .com", func(c *domain.ContactInfo) { c.Email = "mona@example.org" }, []string{"email"}},
		{"short local part", func(c *domain.ContactInfo) { c.Email = "m@example.com" }, []string{"email"}},
		{"bad prefix", func(c *domain.ContactInfo) { c.Phone = "01912345678" }, []string{"phone"}},
		{"short phone", func(c *domain.ContactInfo) { c.Phone = "0101234567" }, []string{"phone"}},
		{"blank names", func(c *domain.ContactInfo) { c.FirstName, c.LastName = " ", "A" }, []string{"firstName", "lastName"}},
		{"short address", func(c *domain.ContactInfo) { c.Address = "St 1" }, []string{"address"}},
		{"city and governorate", func(c *domain.ContactInfo) { c.City, c.Governorate = "", "G" }, []string{"city", "governorate"}},
		{"payment", func(c *domain.ContactInfo) { c.PaymentMethod = "bitcoin" }, []string{"paymentMethod"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ci := validContact()
			tc.mutate(&ci)
			out, err := ValidateContact(ci)
			if len(tc.fields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				if out.Email != "mona@example.com" || out.PaymentMethod != domain.PaymentCash {
					t.Errorf("not normalised: %+v", out)
				}
				return
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) || len(verr.Fields) != len(tc.fields) {
				t.Fatalf("expected fields %v, got %v", tc.fields, err)
			}
			for _, f := range tc.fields {
				if _, ok := verr.Fields[f]; !ok {
					t.Errorf("missing field %q in %v", f, verr.Fields)
				}
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to domain.OrderStatus
		want     bool
	}{
		{domain.StatusPlaced, domain.StatusShipping, true},
		{domain.StatusShipping, domain.StatusDelivered, true},
		{domain.StatusPlaced, domain.StatusPlaced, true},
		{domain.StatusPlaced, domain.StatusDelivered, false},
		{domain.StatusDelivered, domain.StatusShipping, false},
		{domain.StatusShipping, domain.StatusPlaced, false},
		{domain.StatusPlaced, "cancelled", false},
	}
	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
