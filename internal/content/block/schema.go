package block

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "bool"
	TypeArray  FieldType = "array"
	TypeObject FieldType = "object"
)

// Field describes one payload field. Items applies to arrays of objects and to
// objects; Elem applies to arrays of scalars.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	NonEmpty bool
	Integer  bool
	OneOf    []string
	Min      *float64
	Max      *float64
	Elem     FieldType
	Items    *Schema
}

// Schema is the structural description of a kind's payload.
type Schema struct {
	Fields []Field
	// AllowExtra keeps fields the schema does not name instead of reporting them.
	AllowExtra bool
	Defaults   func() map[string]any
	// Check runs semantic rules that cannot be expressed structurally.
	Check func(payload map[string]any) []Violation
}

// Bound returns a pointer for Field.Min and Field.Max.
func Bound(v float64) *float64 { return &v }

// Validate returns every violation found in payload. The payload is expected
// to be in canonical JSON form.
func (s Schema) Validate(payload map[string]any) []Violation {
	out := s.validate("", payload)
	if s.Check != nil {
		out = append(out, s.Check(payload)...)
	}
	return out
}

func (s Schema) validate(prefix string, payload map[string]any) []Violation {
	var out []Violation
	known := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		known[f.Name] = true
		path := joinPath(prefix, f.Name)
		v, ok := payload[f.Name]
		if !ok || v == nil {
			if f.Required {
				out = append(out, violation(path, ErrMissingField, "is required"))
			}
			continue
		}
		out = append(out, f.validate(path, v)...)
	}
	if s.AllowExtra {
		return out
	}
	extra := make([]string, 0)
	for name := range payload {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, violation(joinPath(prefix, name), ErrInvalidValue, "is not a known field"))
	}
	return out
}

func (f Field) validate(path string, v any) []Violation {
	switch f.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return []Violation{wrongType(path, f.Type, v)}
		}
		if f.NonEmpty && strings.TrimSpace(s) == "" {
			return []Violation{violation(path, ErrMissingField, "must not be empty")}
		}
		if len(f.OneOf) > 0 && !slices.Contains(f.OneOf, s) {
			return []Violation{violation(path, ErrInvalidValue, "must be one of %s", strings.Join(f.OneOf, ", "))}
		}
	case TypeNumber:
		n, ok := v.(float64)
		if !ok {
			return []Violation{wrongType(path, f.Type, v)}
		}
		if f.Integer && n != math.Trunc(n) {
			return []Violation{violation(path, ErrInvalidValue, "must be a whole number")}
		}
		if f.Min != nil && n < *f.Min {
			return []Violation{violation(path, ErrInvalidValue, "must be >= %g", *f.Min)}
		}
		if f.Max != nil && n > *f.Max {
			return []Violation{violation(path, ErrInvalidValue, "must be <= %g", *f.Max)}
		}
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return []Violation{wrongType(path, f.Type, v)}
		}
	case TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return []Violation{wrongType(path, f.Type, v)}
		}
		if f.NonEmpty && len(arr) == 0 {
			return []Violation{violation(path, ErrMissingField, "must not be empty")}
		}
		var out []Violation
		for i, el := range arr {
			elPath := fmt.Sprintf("%s[%d]", path, i)
			switch {
			case f.Items != nil:
				m, ok := el.(map[string]any)
				if !ok {
					out = append(out, wrongType(elPath, TypeObject, el))
					continue
				}
				out = append(out, f.Items.validate(elPath, m)...)
			case f.Elem != "":
				out = append(out, Field{Type: f.Elem}.validate(elPath, el)...)
			}
		}
		return out
	case TypeObject:
		m, ok := v.(map[string]any)
		if !ok {
			return []Violation{wrongType(path, f.Type, v)}
		}
		if f.Items != nil {
			return f.Items.validate(path, m)
		}
	}
	return nil
}

func wrongType(path string, want FieldType, got any) Violation {
	return violation(path, ErrWrongType, "must be %s, got %s", want, typeName(got))
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return string(TypeString)
	case float64:
		return string(TypeNumber)
	case bool:
		return string(TypeBool)
	case []any:
		return string(TypeArray)
	case map[string]any:
		return string(TypeObject)
	default:
		return fmt.Sprintf("%T", v)
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
