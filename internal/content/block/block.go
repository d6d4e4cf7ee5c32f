package block

import (
	"encoding/json"
	"maps"
	"strings"
)

type Kind string

const (
	KindTextRich           Kind = "text_rich"
	KindQuote              Kind = "quote"
	KindCallout            Kind = "callout"
	KindQuizMultipleChoice Kind = "quiz_multiple_choice"
	KindHeading            Kind = "heading"
	KindImage              Kind = "image"
	KindVideo              Kind = "video"
	KindDivider            Kind = "divider"
)

// Block is one typed unit of lesson content. Payload values are kept in
// canonical JSON form: string, float64, bool, []any, map[string]any.
type Block struct {
	ID      string         `json:"id"`
	Kind    Kind           `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// NewBlock merges partial over the kind's defaults, assigns a fresh id and
// validates the result.
func (r *Registry) NewBlock(kind Kind, partial map[string]any) (Block, error) {
	schema, err := r.SchemaFor(kind)
	if err != nil {
		return Block{}, err
	}
	payload := make(map[string]any)
	if schema.Defaults != nil {
		maps.Copy(payload, schema.Defaults())
	}
	maps.Copy(payload, partial)

	canonical, err := canonicalize(kind, payload)
	if err != nil {
		return Block{}, err
	}
	if vs := schema.Validate(canonical); len(vs) > 0 {
		return Block{}, &SchemaMismatchError{Kind: kind, Violations: vs}
	}
	return Block{ID: r.nextID(), Kind: kind, Payload: canonical}, nil
}

// Validate checks b against its kind's schema and reports all violations.
func (r *Registry) Validate(b Block) error {
	_, err := r.Normalize(b)
	return err
}

// Normalize validates b and returns a copy whose payload is in canonical form
// and shares no maps or slices with the input.
func (r *Registry) Normalize(b Block) (Block, error) {
	schema, err := r.SchemaFor(b.Kind)
	if err != nil {
		return Block{}, err
	}
	canonical, err := canonicalize(b.Kind, b.Payload)
	if err != nil {
		return Block{}, err
	}
	vs := schema.Validate(canonical)
	if strings.TrimSpace(b.ID) == "" {
		vs = append([]Violation{violation("id", ErrMissingField, "is required")}, vs...)
	}
	if len(vs) > 0 {
		return Block{}, &SchemaMismatchError{Kind: b.Kind, Violations: vs}
	}
	return Block{ID: b.ID, Kind: b.Kind, Payload: canonical}, nil
}

// NormalizePayload validates payload against kind without touching any block id.
func (r *Registry) NormalizePayload(kind Kind, payload map[string]any) (map[string]any, error) {
	schema, err := r.SchemaFor(kind)
	if err != nil {
		return nil, err
	}
	canonical, err := canonicalize(kind, payload)
	if err != nil {
		return nil, err
	}
	if vs := schema.Validate(canonical); len(vs) > 0 {
		return nil, &SchemaMismatchError{Kind: kind, Violations: vs}
	}
	return canonical, nil
}

// canonicalize round-trips payload through JSON so Go literals such as
// []string or int compare equal to what a record store hands back.
func canonicalize(kind Kind, payload map[string]any) (map[string]any, error) {
	out := make(map[string]any)
	if len(payload) == 0 {
		return out, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &SchemaMismatchError{Kind: kind, Violations: []Violation{
			violation("payload", ErrWrongType, "is not JSON encodable: %v", err),
		}}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
