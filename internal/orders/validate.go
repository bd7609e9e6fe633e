package orders

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

var (
	emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]{2,}@[A-Za-z0-9.-]+\.(com)$`)
	phoneRe = regexp.MustCompile(`^(010|011|012|015)[0-9]{8}$`)
)

// ValidateContact trims the input, lower-cases the email and defaults the
// payment method to cash. Every rejected field is reported at once.
func ValidateContact(ci domain.ContactInfo) (domain.ContactInfo, error) {
	ci.Email = strings.ToLower(strings.TrimSpace(ci.Email))
	ci.FirstName = strings.TrimSpace(ci.FirstName)
	ci.LastName = strings.TrimSpace(ci.LastName)
	ci.Address = strings.TrimSpace(ci.Address)
	ci.Phone = strings.TrimSpace(ci.Phone)
	ci.City = strings.TrimSpace(ci.City)
	ci.Governorate = strings.TrimSpace(ci.Governorate)
	if ci.PaymentMethod == "" {
		ci.PaymentMethod = domain.PaymentCash
	}

	verr := &domain.ValidationError{}
	checkEmail(verr, ci.Email)
	checkPhone(verr, ci.Phone)
	checkLen(verr, "firstName", ci.FirstName, 2)
	checkLen(verr, "lastName", ci.LastName, 2)
	checkLen(verr, "address", ci.Address, 5)
	checkLen(verr, "city", ci.City, 2)
	checkLen(verr, "governorate", ci.Governorate, 2)
	if !ci.PaymentMethod.Valid() {
		verr.Add("paymentMethod", "must be one of cash, credit_card, instaPay, vodafoneCash")
	}
	return ci, verr.OrNil()
}

// validatePatch normalises and checks the contact fields an admin edit sets.
func validatePatch(p domain.OrderPatch) (domain.OrderPatch, error) {
	verr := &domain.ValidationError{}
	if p.Status != nil && !p.Status.Valid() {
		verr.Add("status", "must be one of placed, shipping, delivered")
	}
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		s := strings.TrimSpace(*v)
		return &s
	}
	p.FirstName, p.LastName, p.Address = trim(p.FirstName), trim(p.LastName), trim(p.Address)
	p.Phone, p.City, p.Governorate = trim(p.Phone), trim(p.City), trim(p.Governorate)
	if p.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*p.Email))
		p.Email = &e
		checkEmail(verr, e)
	}
	if p.Phone != nil {
		checkPhone(verr, *p.Phone)
	}
	for field, v := range map[string]struct {
		s       *string
		atLeast int
	}{
		"firstName":   {p.FirstName, 2},
		"lastName":    {p.LastName, 2},
		"address":     {p.Address, 5},
		"city":        {p.City, 2},
		"governorate": {p.Governorate, 2},
	} {
		if v.s != nil {
			checkLen(verr, field, *v.s, v.atLeast)
		}
	}
	return p, verr.OrNil()
}

func checkEmail(verr *domain.ValidationError, s string) {
	if !emailRe.MatchString(s) {
		verr.Add("email", "invalid email")
	}
}

func checkPhone(verr *domain.ValidationError, s string) {
	if !phoneRe.MatchString(s) {
		verr.Add("phone", "must be 11 digits starting with 010, 011, 012 or 015")
	}
}

func checkLen(verr *domain.ValidationError, field, s string, atLeast int) {
	if utf8.RuneCountInString(s) < atLeast {
		verr.Add(field, "too short")
	}
}
