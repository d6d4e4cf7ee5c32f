package block

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quizPayload(correct ...string) map[string]any {
	return map[string]any{
		"stem": "Which is a fruit?",
		"options": []map[string]any{
			{"id": "a", "text": "A"},
			{"id": "b", "text": "B"},
		},
		"correctOptionIds": correct,
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("poll", Schema{}))

	err := r.Register("poll", Schema{})
	var dup *DuplicateKindError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, Kind("poll"), dup.Kind)

	_, err = r.SchemaFor("nope")
	var unknown *UnknownKindError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, Kind("nope"), unknown.Kind)

	assert.Error(t, r.Register("  ", Schema{}))
}

func TestDefaultRegistry_Kinds(t *testing.T) {
	kinds := NewDefaultRegistry().Kinds()
	assert.Contains(t, kinds, KindTextRich)
	assert.Contains(t, kinds, KindQuote)
	assert.Contains(t, kinds, KindCallout)
	assert.Contains(t, kinds, KindQuizMultipleChoice)
	assert.True(t, sort.SliceIsSorted(kinds, func(i, j int) bool { return kinds[i] < kinds[j] }))
}

func TestNewBlock_AppliesDefaults(t *testing.T) {
	r := NewDefaultRegistry()
	r.SetIDGenerator(func() string { return "blk-1" })

	b, err := r.NewBlock(KindQuizMultipleChoice, quizPayload("b"))
	require.NoError(t, err)
	assert.Equal(t, "blk-1", b.ID)
	assert.Equal(t, KindQuizMultipleChoice, b.Kind)
	assert.Equal(t, false, b.Payload["allowShuffle"])
	assert.Equal(t, float64(1), b.Payload["points"])
	assert.Equal(t, []any{"b"}, b.Payload["correctOptionIds"])

	q, err := Decode[QuizMultipleChoice](b.Payload)
	require.NoError(t, err)
	assert.Len(t, q.Options, 2)
	assert.Equal(t, "a", q.Options[0].ID)
}

func TestNewBlock_PartialOverridesDefaults(t *testing.T) {
	r := NewDefaultRegistry()
	b, err := r.NewBlock(KindCallout, map[string]any{"variant": "warning", "body": "Careful"})
	require.NoError(t, err)
	assert.Equal(t, "warning", b.Payload["variant"])
	assert.Equal(t, "", b.Payload["title"])
	assert.NotEmpty(t, b.ID)
}

func TestNewBlock_UnknownKind(t *testing.T) {
	_, err := NewDefaultRegistry().NewBlock("poll", nil)
	var unknown *UnknownKindError
	assert.ErrorAs(t, err, &unknown)
}

func TestNewBlock_ReportsAllViolations(t *testing.T) {
	_, err := NewDefaultRegistry().NewBlock(KindQuizMultipleChoice, map[string]any{
		"points":       -2,
		"allowShuffle": "yes",
	})
	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)

	fields := make([]string, 0, len(mismatch.Violations))
	for _, v := range mismatch.Violations {
		fields = append(fields, v.Field)
	}
	assert.Contains(t, fields, "stem")
	assert.Contains(t, fields, "allowShuffle")
	assert.Contains(t, fields, "points")
	assert.True(t, mismatch.Has(ErrTooFewOptions))
	assert.True(t, mismatch.Has(ErrNoCorrectOption))
	assert.ErrorIs(t, err, ErrWrongType)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestValidate_DanglingCorrectOptionID(t *testing.T) {
	r := NewDefaultRegistry()
	b := Block{ID: "q1", Kind: KindQuizMultipleChoice, Payload: map[string]any{
		"stem": "Pick one",
		"options": []any{
			map[string]any{"id": "a", "text": "A"},
			map[string]any{"id": "b", "text": "B"},
		},
		"correctOptionIds": []any{"c"},
		"allowShuffle":     false,
		"points":           1.0,
	}}

	err := r.Validate(b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDanglingCorrectOptionID))

	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Len(t, mismatch.Violations, 1)
	assert.Equal(t, "correctOptionIds[0]", mismatch.Violations[0].Field)
	assert.Equal(t, "dangling_correct_option_id", mismatch.Violations[0].Code)
}

func TestValidate_QuizDuplicateOptionID(t *testing.T) {
	r := NewDefaultRegistry()
	p := quizPayload("a")
	p["options"] = []map[string]any{{"id": "a", "text": "A"}, {"id": "a", "text": "B"}}
	_, err := r.NewBlock(KindQuizMultipleChoice, p)
	assert.ErrorIs(t, err, ErrDuplicateOptionID)
}

func TestValidate_QuizRepeatedCorrectOptionID(t *testing.T) {
	r := NewDefaultRegistry()
	_, err := r.NewBlock(KindQuizMultipleChoice, quizPayload("b", "b"))
	require.ErrorIs(t, err, ErrDuplicateCorrectOption)

	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Len(t, mismatch.Violations, 1)
	assert.Equal(t, "correctOptionIds[1]", mismatch.Violations[0].Field)
	assert.Equal(t, "duplicate_correct_option_id", mismatch.Violations[0].Code)

	_, err = r.NewBlock(KindQuizMultipleChoice, quizPayload("a", "b"))
	assert.NoError(t, err)
}

func TestValidate_MissingID(t *testing.T) {
	r := NewDefaultRegistry()
	err := r.Validate(Block{Kind: KindQuote, Payload: map[string]any{"text": "x"}})
	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "id", mismatch.Violations[0].Field)
}

func TestValidate_UnknownField(t *testing.T) {
	r := NewDefaultRegistry()
	err := r.Validate(Block{ID: "x", Kind: KindQuote, Payload: map[string]any{"text": "x", "author": "y"}})
	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "author", mismatch.Violations[0].Field)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValidate_NestedPaths(t *testing.T) {
	r := NewDefaultRegistry()
	p := quizPayload("a")
	p["options"] = []any{map[string]any{"id": "a", "text": ""}, "b"}
	_, err := r.NewBlock(KindQuizMultipleChoice, p)

	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	fields := map[string]string{}
	for _, v := range mismatch.Violations {
		fields[v.Field] = v.Code
	}
	assert.Equal(t, "missing_field", fields["options[0].text"])
	assert.Equal(t, "wrong_type", fields["options[1]"])
}

func TestValidate_BuiltinKinds(t *testing.T) {
	r := NewDefaultRegistry()
	cases := []struct {
		name    string
		kind    Kind
		payload map[string]any
		wantErr bool
	}{
		{"rich text default", KindTextRich, nil, false},
		{"rich text wrong root", KindTextRich, map[string]any{"doc": map[string]any{"type": "paragraph"}}, true},
		{"quote", KindQuote, map[string]any{"text": "A disciple is not above his teacher", "citation": "Luke 6:40"}, false},
		{"quote blank", KindQuote, map[string]any{"text": "   "}, true},
		{"callout bad variant", KindCallout, map[string]any{"variant": "loud", "body": "x"}, true},
		{"heading", KindHeading, map[string]any{"text": "Intro"}, false},
		{"heading level", KindHeading, map[string]any{"text": "Intro", "level": 1.5}, true},
		{"image", KindImage, map[string]any{"url": "https://example.com/a.png"}, false},
		{"video negative start", KindVideo, map[string]any{"url": "https://example.com/v", "startSec": -1}, true},
		{"divider", KindDivider, nil, false},
		{"divider extra", KindDivider, map[string]any{"x": 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.NewBlock(tc.kind, tc.payload)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalize_DoesNotAliasInput(t *testing.T) {
	r := NewDefaultRegistry()
	in := Block{ID: "x", Kind: KindQuote, Payload: map[string]any{"text": "hello"}}
	out, err := r.Normalize(in)
	require.NoError(t, err)
	out.Payload["text"] = "changed"
	assert.Equal(t, "hello", in.Payload["text"])
}

func TestNewBlock_NotEncodable(t *testing.T) {
	_, err := NewDefaultRegistry().NewBlock(KindQuote, map[string]any{"text": make(chan int)})
	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "payload", mismatch.Violations[0].Field)
}
