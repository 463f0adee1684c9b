package model

import (
	"fmt"
	"strconv"
	"strings"
)

// TempID is a negative identifier for a row the remote store has not
// acknowledged yet.
type TempID int64

// PersistedID is a positive identifier issued by the remote store.
type PersistedID int64

// Identity is the tagged union Temp(int64<0) | Persisted(int64>0).
//
// The sign of the stored value is the tag. The zero value is invalid and
// reports false from both IsTemp and IsPersisted.
type Identity struct {
	v int64
}

// Temp returns the identity of a not-yet-persisted row.
func Temp(id TempID) (Identity, error) {
	if id >= 0 {
		return Identity{}, fmt.Errorf("temp id must be negative, got %d", id)
	}
	return Identity{v: int64(id)}, nil
}

// Persisted returns the identity of a row committed by the remote store.
func Persisted(id PersistedID) (Identity, error) {
	if id <= 0 {
		return Identity{}, fmt.Errorf("persisted id must be positive, got %d", id)
	}
	return Identity{v: int64(id)}, nil
}

// IdentityOf builds an identity from a raw id; the sign decides the tag.
func IdentityOf(id int64) (Identity, error) {
	if id == 0 {
		return Identity{}, fmt.Errorf("id must not be zero")
	}
	return Identity{v: id}, nil
}

// MustTemp is Temp for ids that are known to be valid (allocator output, tests).
func MustTemp(id TempID) Identity {
	ident, err := Temp(id)
	if err != nil {
		panic(err)
	}
	return ident
}

// MustPersisted is Persisted for ids that are known to be valid.
func MustPersisted(id PersistedID) Identity {
	ident, err := Persisted(id)
	if err != nil {
		panic(err)
	}
	return ident
}

// IsTemp reports whether the identity is a temp id.
func (i Identity) IsTemp() bool { return i.v < 0 }

// IsPersisted reports whether the identity is a persisted id.
func (i Identity) IsPersisted() bool { return i.v > 0 }

// IsZero reports whether the identity is the invalid zero value.
func (i Identity) IsZero() bool { return i.v == 0 }

// TempID returns the temp id. Only meaningful when IsTemp is true.
func (i Identity) TempID() TempID { return TempID(i.v) }

// PersistedID returns the persisted id. Only meaningful when IsPersisted is true.
func (i Identity) PersistedID() PersistedID { return PersistedID(i.v) }

// Int64 returns the raw signed id.
func (i Identity) Int64() int64 { return i.v }

// String renders "temp:-3" or "id:101".
func (i Identity) String() string {
	switch {
	case i.IsTemp():
		return "temp:" + strconv.FormatInt(i.v, 10)
	case i.IsPersisted():
		return "id:" + strconv.FormatInt(i.v, 10)
	default:
		return "invalid"
	}
}

// ParseIdentity accepts "temp:-3", "id:101" or a bare signed integer.
func ParseIdentity(s string) (Identity, error) {
	raw, prefix := s, ""
	if rest, ok := strings.CutPrefix(s, "temp:"); ok {
		raw, prefix = rest, "temp"
	} else if rest, ok := strings.CutPrefix(s, "id:"); ok {
		raw, prefix = rest, "id"
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("parse identity %q: %w", s, err)
	}
	switch {
	case prefix == "temp" && n >= 0:
		return Identity{}, fmt.Errorf("parse identity %q: temp id must be negative", s)
	case prefix == "id" && n <= 0:
		return Identity{}, fmt.Errorf("parse identity %q: persisted id must be positive", s)
	}
	return IdentityOf(n)
}
