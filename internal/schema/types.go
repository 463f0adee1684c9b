package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/roach88/gridsync/internal/model"
)

// FieldType is the value type of a column.
type FieldType string

const (
	TypeText    FieldType = "text"
	TypeInt     FieldType = "int"
	TypeDecimal FieldType = "decimal"
	TypeBool    FieldType = "bool"
)

// ValidFieldTypes lists the accepted type names.
var ValidFieldTypes = []FieldType{TypeText, TypeInt, TypeDecimal, TypeBool}

func parseFieldType(s string) (FieldType, bool) {
	for _, t := range ValidFieldTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// normalizeNumber folds full-width digits (common with IME input), drops
// thousands separators and surrounding space.
func normalizeNumber(raw string) string {
	s := width.Narrow.String(strings.TrimSpace(raw))
	return strings.ReplaceAll(s, ",", "")
}

func parseValue(t FieldType, raw string) (model.Value, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return model.Null{}, nil
	}
	switch t {
	case TypeText:
		return model.Text(norm.NFC.String(trimmed)), nil
	case TypeInt:
		n, err := strconv.ParseInt(normalizeNumber(trimmed), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", raw)
		}
		return model.Int(n), nil
	case TypeDecimal:
		d, err := decimal.NewFromString(normalizeNumber(trimmed))
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", raw)
		}
		return model.Decimal{Decimal: d}, nil
	case TypeBool:
		switch strings.ToLower(width.Narrow.String(trimmed)) {
		case "y", "yes", "true", "1", "o":
			return model.Bool(true), nil
		case "n", "no", "false", "0", "x":
			return model.Bool(false), nil
		}
		return nil, fmt.Errorf("not a yes/no value: %q", raw)
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}

func formatValue(t FieldType, v model.Value) string {
	if v == nil {
		return ""
	}
	if t == TypeDecimal {
		if d, ok := v.(model.Decimal); ok {
			return groupThousands(d.Decimal)
		}
	}
	return v.Display()
}

// groupThousands renders 1234567.5 as "1,234,567.5".
func groupThousands(d decimal.Decimal) string {
	s := d.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}

func decodeValue(t FieldType, raw json.RawMessage) (model.Value, error) {
	v, err := model.UnmarshalValue(raw)
	if err != nil {
		return nil, err
	}
	if _, isNull := v.(model.Null); isNull {
		return v, nil
	}
	switch t {
	case TypeText:
		if _, ok := v.(model.Text); ok {
			return v, nil
		}
		return model.Text(v.Display()), nil
	case TypeInt:
		if n, ok := v.(model.Int); ok {
			return n, nil
		}
	case TypeDecimal:
		switch val := v.(type) {
		case model.Decimal:
			return val, nil
		case model.Int:
			return model.Decimal{Decimal: decimal.NewFromInt(int64(val))}, nil
		case model.Text:
			return parseValue(TypeDecimal, string(val))
		}
	case TypeBool:
		if b, ok := v.(model.Bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("cannot decode %s as %s", raw, t)
}
