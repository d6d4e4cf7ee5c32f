package block

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrWrongType    = errors.New("wrong field type")
	ErrInvalidValue = errors.New("invalid field value")

	// Quiz specific.
	ErrDanglingCorrectOptionID = errors.New("correct option id does not reference an option")
	ErrTooFewOptions           = errors.New("quiz needs at least two options")
	ErrNoCorrectOption         = errors.New("quiz needs at least one correct option")
	ErrDuplicateOptionID       = errors.New("duplicate option id")
	ErrDuplicateCorrectOption  = errors.New("correct option id listed more than once")
)

// UnknownKindError is returned when a kind is not present in the registry.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown block kind %q", string(e.Kind))
}

// DuplicateKindError is returned when registering a kind twice.
type DuplicateKindError struct {
	Kind Kind
}

func (e *DuplicateKindError) Error() string {
	return fmt.Sprintf("block kind %q is already registered", string(e.Kind))
}

// Violation is a single field-level problem found while validating a payload.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func violation(field string, err error, format string, args ...any) Violation {
	return Violation{Field: field, Code: codeFor(err), Message: fmt.Sprintf(format, args...), Err: err}
}

func codeFor(err error) string {
	switch err {
	case ErrMissingField:
		return "missing_field"
	case ErrWrongType:
		return "wrong_type"
	case ErrDanglingCorrectOptionID:
		return "dangling_correct_option_id"
	case ErrTooFewOptions:
		return "too_few_options"
	case ErrNoCorrectOption:
		return "no_correct_option"
	case ErrDuplicateOptionID:
		return "duplicate_option_id"
	case ErrDuplicateCorrectOption:
		return "duplicate_correct_option_id"
	default:
		return "invalid_value"
	}
}

// SchemaMismatchError lists every violation found for a payload.
type SchemaMismatchError struct {
	Kind       Kind
	Violations []Violation
}

func (e *SchemaMismatchError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return fmt.Sprintf("payload does not match %q schema: %s", string(e.Kind), strings.Join(parts, "; "))
}

// Unwrap exposes each violation's sentinel to errors.Is.
func (e *SchemaMismatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Err != nil {
			errs = append(errs, v.Err)
		}
	}
	return errs
}

// Has reports whether any violation carries target.
func (e *SchemaMismatchError) Has(target error) bool {
	for _, v := range e.Violations {
		if errors.Is(v.Err, target) {
			return true
		}
	}
	return false
}
