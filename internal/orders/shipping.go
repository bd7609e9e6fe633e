package orders

import (
	"strings"

	"github.com/shopspring/decimal"
)

var defaultRates = map[string]int64{
	"Cairo":      50,
	"Giza":       60,
	"Alexandria": 70,
	"Dakahlia":   80,
	"Sharqia":    80,
	"Gharbia":    80,
	"Qalyubia":   70,
	"Ismailia":   90,
	"Suez":       90,
	"Port Said":  90,
	"Luxor":      120,
	"Aswan":      130,
}

const defaultFee = 100

// ShippingTable is a flat fee per governorate with a fallback for the rest.
// Lookups ignore case and surrounding spaces.
type ShippingTable struct {
	rates   map[string]decimal.Decimal
	Default decimal.Decimal
}

func NewShippingTable(rates map[string]decimal.Decimal, def decimal.Decimal) ShippingTable {
	t := ShippingTable{rates: make(map[string]decimal.Decimal, len(rates)), Default: def}
	for k, v := range rates {
		t.rates[normalizeGov(k)] = v
	}
	return t
}

func DefaultShippingTable() ShippingTable {
	rates := make(map[string]decimal.Decimal, len(defaultRates))
	for k, v := range defaultRates {
		rates[k] = decimal.NewFromInt(v)
	}
	return NewShippingTable(rates, decimal.NewFromInt(defaultFee))
}

// With returns a copy with overrides applied on top of t.
func (t ShippingTable) With(overrides map[string]decimal.Decimal) ShippingTable {
	out := NewShippingTable(nil, t.Default)
	for k, v := range t.rates {
		out.rates[k] = v
	}
	for k, v := range overrides {
		out.rates[normalizeGov(k)] = v
	}
	return out
}

func (t ShippingTable) Fee(governorate string) decimal.Decimal {
	if fee, ok := t.rates[normalizeGov(governorate)]; ok {
		return fee
	}
	return t.Default
}

func normalizeGov(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
