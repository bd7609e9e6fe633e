package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// IdentityKind tells whether a cart or wishlist belongs to a guest session
// or to an authenticated account.
type IdentityKind string

const (
	IdentitySession IdentityKind = "session"
	IdentityAccount IdentityKind = "account"
)

// Identity is either Session(id) or Account(id). The zero value is invalid,
// so a cart can never carry both keys or neither.
type Identity struct {
	kind IdentityKind
	key  string
}

func Session(id string) Identity { return Identity{kind: IdentitySession, key: strings.TrimSpace(id)} }
func Account(id string) Identity { return Identity{kind: IdentityAccount, key: strings.TrimSpace(id)} }

// ParseIdentity rebuilds an identity from its stored kind and key.
func ParseIdentity(kind, key string) (Identity, error) {
	switch IdentityKind(kind) {
	case IdentitySession:
		return Session(key), nil
	case IdentityAccount:
		return Account(key), nil
	}
	return Identity{}, fmt.Errorf("unknown identity kind %q", kind)
}

func (i Identity) Kind() IdentityKind { return i.kind }
func (i Identity) Key() string        { return i.key }
func (i Identity) IsAccount() bool    { return i.kind == IdentityAccount }

func (i Identity) Valid() bool {
	return (i.kind == IdentitySession || i.kind == IdentityAccount) && i.key != ""
}

func (i Identity) String() string { return string(i.kind) + ":" + i.key }

func (i Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind IdentityKind `json:"kind"`
		Key  string       `json:"key"`
	}{i.kind, i.key})
}

func (i *Identity) UnmarshalJSON(b []byte) error {
	var raw struct {
		Kind string `json:"kind"`
		Key  string `json:"key"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	id, err := ParseIdentity(raw.Kind, raw.Key)
	if err != nil {
		return err
	}
	*i = id
	return nil
}
