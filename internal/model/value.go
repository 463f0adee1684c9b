package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Value is a sealed interface over the field value types a grid cell can
// hold. Only Null, Text, Int, Bool and Decimal implement it.
type Value interface {
	modelValue()
	// Display renders the value the way a grid cell shows it.
	Display() string
}

// Null is an empty cell.
type Null struct{}

func (Null) modelValue() {}
func (Null) Display() string { return "" }

// Text is a free-text cell.
type Text string

func (Text) modelValue() {}
func (t Text) Display() string { return string(t) }

// Int is an integral cell (floor number, room count).
type Int int64

func (Int) modelValue() {}
func (n Int) Display() string { return strconv.FormatInt(int64(n), 10) }

// Bool is a yes/no cell.
type Bool bool

func (Bool) modelValue() {}
func (b Bool) Display() string {
	if b {
		return "Y"
	}
	return "N"
}

// Decimal is an exact decimal cell (deposit, rent, area).
type Decimal struct {
	decimal.Decimal
}

func (Decimal) modelValue() {}
func (d Decimal) Display() string { return d.Decimal.String() }

// NewDecimal parses an exact decimal.
func NewDecimal(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Decimal{d}, nil
}

// MustDecimal is NewDecimal for literals.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ValuesEqual compares two values by type and content. Decimals compare
// numerically, so "1.50" equals "1.5".
func ValuesEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Decimal:
		bv, ok := b.(Decimal)
		return ok && av.Decimal.Equal(bv.Decimal)
	default:
		return a == b
	}
}

// ValueOf converts a loosely typed Go value (as decoded from YAML or a CLI
// argument) into a Value.
func ValueOf(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return Text(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case bool:
		return Bool(val), nil
	case float64:
		if val == float64(int64(val)) {
			return Int(int64(val)), nil
		}
		return Decimal{decimal.NewFromFloat(val)}, nil
	case decimal.Decimal:
		return Decimal{val}, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// UnmarshalValue decodes a JSON scalar without schema information.
// Integral numbers become Int, other numbers Decimal.
func UnmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Null{}, nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode text: %w", err)
		}
		return Text(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode bool: %w", err)
		}
		return Bool(b), nil
	case '{', '[':
		return nil, fmt.Errorf("nested values are not supported")
	default:
		if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			return Int(n), nil
		}
		d, err := decimal.NewFromString(string(data))
		if err != nil {
			return nil, fmt.Errorf("decode number %s: %w", data, err)
		}
		return Decimal{d}, nil
	}
}
