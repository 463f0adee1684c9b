package model

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Fields is an ordered mapping from storage key to value.
//
// Keys keep the order of their first Set. Setting an existing key replaces
// its value in place (last write wins). The zero value is ready to use.
type Fields struct {
	keys []string
	vals map[string]Value
}

// NewFields builds Fields from alternating key/value pairs kept in order.
func NewFields(pairs ...FieldPair) Fields {
	var f Fields
	for _, p := range pairs {
		f.Set(p.Key, p.Value)
	}
	return f
}

// FieldPair is one key/value entry for NewFields.
type FieldPair struct {
	Key   string
	Value Value
}

// F is shorthand for FieldPair{key, value}.
func F(key string, value Value) FieldPair {
	return FieldPair{Key: key, Value: value}
}

// Set writes a value. A nil value is stored as Null.
func (f *Fields) Set(key string, v Value) {
	if v == nil {
		v = Null{}
	}
	if f.vals == nil {
		f.vals = make(map[string]Value)
	}
	if _, ok := f.vals[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.vals[key] = v
}

// Get returns the value for key.
func (f Fields) Get(key string) (Value, bool) {
	v, ok := f.vals[key]
	return v, ok
}

// Delete removes a key.
func (f *Fields) Delete(key string) {
	if _, ok := f.vals[key]; !ok {
		return
	}
	delete(f.vals, key)
	f.keys = slices.DeleteFunc(f.keys, func(k string) bool { return k == key })
}

// Keys returns the keys in insertion order.
func (f Fields) Keys() []string {
	return slices.Clone(f.keys)
}

// Len returns the number of keys.
func (f Fields) Len() int {
	return len(f.keys)
}

// Clone returns an independent copy.
func (f Fields) Clone() Fields {
	out := Fields{keys: slices.Clone(f.keys)}
	if f.vals != nil {
		out.vals = make(map[string]Value, len(f.vals))
		for k, v := range f.vals {
			out.vals[k] = v
		}
	}
	return out
}

// Equal compares keys and values, ignoring order.
func (f Fields) Equal(other Fields) bool {
	if len(f.keys) != len(other.keys) {
		return false
	}
	for k, v := range f.vals {
		ov, ok := other.vals[k]
		if !ok || !ValuesEqual(v, ov) {
			return false
		}
	}
	return true
}

// Diff returns the keys whose value in other differs from f, or that only
// exist in other, in other's order.
func (f Fields) Diff(other Fields) []string {
	var changed []string
	for _, k := range other.keys {
		v, ok := f.vals[k]
		if !ok || !ValuesEqual(v, other.vals[k]) {
			changed = append(changed, k)
		}
	}
	return changed
}

// MarshalJSON encodes the fields as a canonical JSON object.
func (f Fields) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(f)
}

// UnmarshalJSON decodes a flat JSON object without schema information.
// Key order follows sorted order since JSON objects carry none.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	*f = Fields{}
	for _, k := range keys {
		v, err := UnmarshalValue(raw[k])
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		f.Set(k, v)
	}
	return nil
}
