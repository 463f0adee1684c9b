package schema

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/gridsync/internal/model"
)

// Field describes one column of a kind.
type Field struct {
	DisplayKey string
	StorageKey string
	Type       FieldType
	Required   bool
}

// Parse converts a raw cell string into a typed value.
func (f Field) Parse(raw string) (model.Value, error) {
	v, err := parseValue(f.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.DisplayKey, err)
	}
	if f.Required {
		if _, isNull := v.(model.Null); isNull {
			return nil, fmt.Errorf("%s: value is required", f.DisplayKey)
		}
	}
	return v, nil
}

// Format renders a value for display in this column.
func (f Field) Format(v model.Value) string {
	return formatValue(f.Type, v)
}

// Decode converts a JSON value received from the remote store.
func (f Field) Decode(raw json.RawMessage) (model.Value, error) {
	v, err := decodeValue(f.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.StorageKey, err)
	}
	return v, nil
}

// Coerce converts an already typed value into this column's type, e.g. an
// Int entered into a decimal column.
func (f Field) Coerce(v model.Value) (model.Value, error) {
	if v == nil {
		return model.Null{}, nil
	}
	if _, isNull := v.(model.Null); isNull {
		return v, nil
	}
	if _, isText := v.(model.Text); isText && f.Type != TypeText {
		return f.Parse(v.Display())
	}
	switch f.Type {
	case TypeText:
		return model.Text(v.Display()), nil
	case TypeDecimal:
		switch val := v.(type) {
		case model.Decimal:
			return val, nil
		case model.Int:
			return f.Parse(val.Display())
		}
	case TypeInt:
		if val, ok := v.(model.Int); ok {
			return val, nil
		}
	case TypeBool:
		if val, ok := v.(model.Bool); ok {
			return val, nil
		}
	}
	return nil, fmt.Errorf("%s: cannot use %T as %s", f.DisplayKey, v, f.Type)
}

// Schema is the ordered field list of one kind.
type Schema struct {
	Kind   model.Kind
	Title  string
	Fields []Field

	byDisplay map[string]int
	byStorage map[string]int
}

func newSchema(kind model.Kind, title string, fields []Field) (*Schema, error) {
	s := &Schema{
		Kind:      kind,
		Title:     title,
		Fields:    fields,
		byDisplay: make(map[string]int, len(fields)),
		byStorage: make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if _, dup := s.byStorage[f.StorageKey]; dup {
			return nil, &SchemaError{Kind: kind, Field: f.StorageKey, Message: "duplicate storage key"}
		}
		if _, dup := s.byDisplay[f.DisplayKey]; dup {
			return nil, &SchemaError{Kind: kind, Field: f.DisplayKey, Message: "duplicate display key"}
		}
		s.byStorage[f.StorageKey] = i
		s.byDisplay[f.DisplayKey] = i
	}
	return s, nil
}

// ByStorage looks a field up by storage key.
func (s *Schema) ByStorage(key string) (Field, bool) {
	i, ok := s.byStorage[key]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// ByDisplay looks a field up by display key.
func (s *Schema) ByDisplay(key string) (Field, bool) {
	i, ok := s.byDisplay[key]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Resolve accepts either a storage key or a display key.
func (s *Schema) Resolve(key string) (Field, error) {
	if f, ok := s.ByStorage(key); ok {
		return f, nil
	}
	if f, ok := s.ByDisplay(key); ok {
		return f, nil
	}
	return Field{}, fmt.Errorf("kind %s has no field %q", s.Kind, key)
}

// DecodeFields converts a remote row into Fields in schema order. Unknown
// keys are kept after the schema fields, decoded without type information.
func (s *Schema) DecodeFields(raw map[string]json.RawMessage) (model.Fields, error) {
	var out model.Fields
	for _, f := range s.Fields {
		data, ok := raw[f.StorageKey]
		if !ok {
			continue
		}
		v, err := f.Decode(data)
		if err != nil {
			return model.Fields{}, err
		}
		out.Set(f.StorageKey, v)
	}

	var extra []string
	for k := range raw {
		if _, known := s.byStorage[k]; !known {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	for _, k := range extra {
		v, err := model.UnmarshalValue(raw[k])
		if err != nil {
			return model.Fields{}, fmt.Errorf("%s: %w", k, err)
		}
		out.Set(k, v)
	}
	return out, nil
}

// Registry holds the compiled schemas of every kind.
type Registry struct {
	schemas map[model.Kind]*Schema
	order   []model.Kind
}

// Schema returns the schema for kind.
func (r *Registry) Schema(kind model.Kind) (*Schema, error) {
	s, ok := r.schemas[kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	return s, nil
}

// Kinds returns the kinds in declaration order.
func (r *Registry) Kinds() []model.Kind {
	return slices.Clone(r.order)
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind model.Kind) bool {
	_, ok := r.schemas[kind]
	return ok
}
