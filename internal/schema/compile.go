package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/gridsync/internal/model"
)

// SchemaError reports an invalid schema definition, with the CUE source
// position when one is known.
type SchemaError struct {
	Kind    model.Kind
	Field   string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	prefix := string(e.Kind)
	if e.Field != "" {
		prefix += "." + e.Field
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Compile builds a Registry from a CUE value holding a top-level "kind"
// struct. Kinds keep their declaration order.
func Compile(v cue.Value) (*Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	kindsVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindsVal.Exists() {
		return nil, &SchemaError{Message: "no kind definitions found", Pos: v.Pos()}
	}

	iter, err := kindsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	reg := &Registry{schemas: make(map[model.Kind]*Schema)}
	for iter.Next() {
		kind, err := model.ParseKind(iter.Label())
		if err != nil {
			return nil, &SchemaError{Kind: model.Kind(iter.Label()), Message: err.Error(), Pos: iter.Value().Pos()}
		}
		s, err := compileKind(kind, iter.Value())
		if err != nil {
			return nil, err
		}
		reg.schemas[kind] = s
		reg.order = append(reg.order, kind)
	}

	if len(reg.order) == 0 {
		return nil, &SchemaError{Message: "no kind definitions found", Pos: kindsVal.Pos()}
	}
	return reg, nil
}

func compileKind(kind model.Kind, v cue.Value) (*Schema, error) {
	title := string(kind)
	if titleVal := v.LookupPath(cue.ParsePath("title")); titleVal.Exists() {
		s, err := titleVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		title = s
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &SchemaError{Kind: kind, Message: "fields are required", Pos: v.Pos()}
	}
	list, err := fieldsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []Field
	for list.Next() {
		f, err := compileField(kind, list.Value())
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, &SchemaError{Kind: kind, Message: "at least one field is required", Pos: fieldsVal.Pos()}
	}

	return newSchema(kind, title, fields)
}

func compileField(kind model.Kind, v cue.Value) (Field, error) {
	storage, err := requiredString(kind, v, "storage")
	if err != nil {
		return Field{}, err
	}

	f := Field{StorageKey: storage, DisplayKey: storage, Type: TypeText}

	if displayVal := v.LookupPath(cue.ParsePath("display")); displayVal.Exists() {
		display, err := displayVal.String()
		if err != nil {
			return Field{}, formatCUEError(err)
		}
		f.DisplayKey = display
	}

	if typeVal := v.LookupPath(cue.ParsePath("type")); typeVal.Exists() {
		if def, ok := typeVal.Default(); ok {
			typeVal = def
		}
		name, err := typeVal.String()
		if err != nil {
			return Field{}, formatCUEError(err)
		}
		t, ok := parseFieldType(name)
		if !ok {
			return Field{}, &SchemaError{
				Kind:    kind,
				Field:   storage,
				Message: fmt.Sprintf("invalid type %q: must be one of %v", name, ValidFieldTypes),
				Pos:     typeVal.Pos(),
			}
		}
		f.Type = t
	}

	if reqVal := v.LookupPath(cue.ParsePath("required")); reqVal.Exists() {
		req, err := reqVal.Bool()
		if err != nil {
			return Field{}, formatCUEError(err)
		}
		f.Required = req
	}

	return f, nil
}

func requiredString(kind model.Kind, v cue.Value, name string) (string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", &SchemaError{Kind: kind, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if s == "" {
		return "", &SchemaError{Kind: kind, Message: name + " must not be empty", Pos: val.Pos()}
	}
	return s, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &SchemaError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
