package block

import "fmt"

var CalloutVariants = []string{"info", "tip", "warning", "danger"}

func builtinSchemas() map[Kind]Schema {
	return map[Kind]Schema{
		KindTextRich: {
			Fields: []Field{
				{Name: "doc", Type: TypeObject, Required: true, Items: &Schema{
					AllowExtra: true,
					Fields: []Field{
						{Name: "type", Type: TypeString, Required: true, OneOf: []string{"doc"}},
						{Name: "content", Type: TypeArray},
					},
				}},
			},
			Defaults: func() map[string]any {
				return map[string]any{"doc": map[string]any{"type": "doc", "content": []any{}}}
			},
		},
		KindQuote: {
			Fields: []Field{
				{Name: "text", Type: TypeString, Required: true, NonEmpty: true},
				{Name: "citation", Type: TypeString},
			},
		},
		KindCallout: {
			Fields: []Field{
				{Name: "variant", Type: TypeString, Required: true, OneOf: CalloutVariants},
				{Name: "title", Type: TypeString, Required: true},
				{Name: "body", Type: TypeString, Required: true, NonEmpty: true},
			},
			Defaults: func() map[string]any {
				return map[string]any{"variant": "info", "title": ""}
			},
		},
		KindQuizMultipleChoice: {
			Fields: []Field{
				{Name: "stem", Type: TypeString, Required: true, NonEmpty: true},
				{Name: "options", Type: TypeArray, Required: true, Items: &Schema{
					Fields: []Field{
						{Name: "id", Type: TypeString, Required: true, NonEmpty: true},
						{Name: "text", Type: TypeString, Required: true, NonEmpty: true},
					},
				}},
				{Name: "correctOptionIds", Type: TypeArray, Required: true, Elem: TypeString},
				{Name: "allowShuffle", Type: TypeBool, Required: true},
				{Name: "points", Type: TypeNumber, Required: true, Min: Bound(0)},
				{Name: "explanation", Type: TypeString},
			},
			Defaults: func() map[string]any {
				return map[string]any{
					"options":          []any{},
					"correctOptionIds": []any{},
					"allowShuffle":     false,
					"points":           1,
				}
			},
			Check: checkQuiz,
		},
		KindHeading: {
			Fields: []Field{
				{Name: "text", Type: TypeString, Required: true, NonEmpty: true},
				{Name: "level", Type: TypeNumber, Required: true, Integer: true, Min: Bound(1), Max: Bound(3)},
			},
			Defaults: func() map[string]any { return map[string]any{"level": 2} },
		},
		KindImage: {
			Fields: []Field{
				{Name: "url", Type: TypeString, Required: true, NonEmpty: true},
				{Name: "alt", Type: TypeString},
				{Name: "caption", Type: TypeString},
			},
		},
		KindVideo: {
			Fields: []Field{
				{Name: "url", Type: TypeString, Required: true, NonEmpty: true},
				{Name: "caption", Type: TypeString},
				{Name: "startSec", Type: TypeNumber, Min: Bound(0)},
			},
		},
		KindDivider: {},
	}
}

// checkQuiz enforces the option/answer relationships of a multiple choice quiz.
// Malformed entries are skipped here; the structural pass reports them.
func checkQuiz(payload map[string]any) []Violation {
	var out []Violation

	options, _ := payload["options"].([]any)
	ids := make(map[string]bool, len(options))
	for i, o := range options {
		m, ok := o.(map[string]any)
		if !ok {
			continue
		}
		id, ok := m["id"].(string)
		if !ok || id == "" {
			continue
		}
		if ids[id] {
			out = append(out, violation(fmt.Sprintf("options[%d].id", i), ErrDuplicateOptionID, "option id %q is used more than once", id))
		}
		ids[id] = true
	}
	if len(options) < 2 {
		out = append(out, violation("options", ErrTooFewOptions, "needs at least 2 options, got %d", len(options)))
	}

	correct, _ := payload["correctOptionIds"].([]any)
	if len(correct) == 0 {
		out = append(out, violation("correctOptionIds", ErrNoCorrectOption, "needs at least one correct option"))
	}
	listed := make(map[string]bool, len(correct))
	for i, c := range correct {
		id, ok := c.(string)
		if !ok {
			continue
		}
		if listed[id] {
			out = append(out, violation(fmt.Sprintf("correctOptionIds[%d]", i), ErrDuplicateCorrectOption, "%q is listed more than once", id))
			continue
		}
		listed[id] = true
		if !ids[id] {
			out = append(out, violation(fmt.Sprintf("correctOptionIds[%d]", i), ErrDanglingCorrectOptionID, "%q is not an option id", id))
		}
	}
	return out
}
