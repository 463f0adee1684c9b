package model

import "fmt"

// Kind is the category of a record. Each kind has its own pending set and
// its own field schema.
type Kind string

const (
	// KindShop is a commercial (shop) listing.
	KindShop Kind = "shop"
	// KindOneRoom is a one-room residential listing.
	KindOneRoom Kind = "oneroom"
)

// ParseKind validates a kind name. Only kinds known to the schema registry
// are usable by a session; this only rejects the empty string and
// characters that cannot appear in a URL path segment.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return "", fmt.Errorf("kind must not be empty")
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return "", fmt.Errorf("invalid kind %q: only [a-z0-9_-] allowed", s)
		}
	}
	return Kind(s), nil
}

func (k Kind) String() string {
	return string(k)
}
