package domain

import "time"

// ProfileField names a patchable customer column.
type ProfileField string

const (
	FieldFirstName   ProfileField = "first_name"
	FieldLastName    ProfileField = "last_name"
	FieldAddress     ProfileField = "address"
	FieldPhone       ProfileField = "phone"
	FieldCity        ProfileField = "city"
	FieldGovernorate ProfileField = "governorate"
)

type ProfileChanges map[ProfileField]string

// Customer is the profile keyed by email that accumulates orders.
type Customer struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	City        string    `json:"city"`
	Governorate string    `json:"governorate"`
	OrderIDs    []string  `json:"orderIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c *Customer) field(f ProfileField) *string {
	switch f {
	case FieldFirstName:
		return &c.FirstName
	case FieldLastName:
		return &c.LastName
	case FieldAddress:
		return &c.Address
	case FieldPhone:
		return &c.Phone
	case FieldCity:
		return &c.City
	case FieldGovernorate:
		return &c.Governorate
	}
	return nil
}

// Diff returns the non-empty contact fields that differ from the profile.
func (c *Customer) Diff(ci ContactInfo) ProfileChanges {
	incoming := ProfileChanges{
		FieldFirstName:   ci.FirstName,
		FieldLastName:    ci.LastName,
		FieldAddress:     ci.Address,
		FieldPhone:       ci.Phone,
		FieldCity:        ci.City,
		FieldGovernorate: ci.Governorate,
	}
	out := ProfileChanges{}
	for f, v := range incoming {
		if v != "" && *c.field(f) != v {
			out[f] = v
		}
	}
	return out
}

func (c *Customer) Apply(ch ProfileChanges) {
	for f, v := range ch {
		if p := c.field(f); p != nil {
			*p = v
		}
	}
}

func (c *Customer) Clone() *Customer {
	cp := *c
	cp.OrderIDs = append([]string(nil), c.OrderIDs...)
	return &cp
}

// CustomerFromContact builds a fresh profile for a first-time buyer.
func CustomerFromContact(id string, ci ContactInfo, now time.Time) *Customer {
	return &Customer{
		ID:          id,
		Email:       ci.Email,
		FirstName:   ci.FirstName,
		LastName:    ci.LastName,
		Address:     ci.Address,
		Phone:       ci.Phone,
		City:        ci.City,
		Governorate: ci.Governorate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
