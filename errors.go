package arbors

import (
	"errors"

	"github.com/kaptinlin/go-i18n"
)

// === Parser / schema compiler errors ===
var (
	// ErrTypeMismatch is returned when a value's runtime type does not match
	// the type required by its schema.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrMissingRequiredField is returned when a required object property is
	// absent from the input document.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrUnexpectedNull is returned when a property is present and null but
	// its schema does not mark it nullable.
	ErrUnexpectedNull = errors.New("unexpected null")

	// ErrUnknownProperty is returned when an object carries a property not
	// declared by a closed schema (additionalProperties: false).
	ErrUnknownProperty = errors.New("unknown property")

	// ErrTupleOverflow is returned when a tuple-typed array carries more
	// elements than its prefixItems/additional schema allows.
	ErrTupleOverflow = errors.New("tuple overflow")

	// ErrUnsupportedKeyword is returned by the schema compiler's reject
	// phase when a schema uses a keyword outside the supported subset.
	ErrUnsupportedKeyword = errors.New("unsupported keyword")

	// ErrSchemaReject is returned when a value is parsed against a Reject
	// schema (a boolean-false schema).
	ErrSchemaReject = errors.New("schema rejects all values")

	// ErrParse is a catch-all for malformed input documents that are not
	// schema-shape errors (e.g. truncated JSON).
	ErrParse = errors.New("parse error")

	// ErrInvalidSchema is returned for structurally invalid schemas, e.g. a
	// multi-type union other than the nullable pattern.
	ErrInvalidSchema = errors.New("invalid schema")

	// === Storage errors ===

	// ErrBatchCorruption is returned when a stored batch's framed bytes
	// fail header or offset validation.
	ErrBatchCorruption = errors.New("batch corruption")

	// ErrStorage is a catch-all for storage-engine failures (I/O, mmap,
	// transaction lifecycle).
	ErrStorage = errors.New("storage error")

	// ErrBufferLimitExceeded is returned when a typed buffer construction
	// fails alignment or length-divisibility validation.
	ErrBufferLimitExceeded = errors.New("buffer limit exceeded")

	// === Query errors ===

	// ErrIndexOutOfBounds is returned when get(i) or a slice operation
	// references an index beyond an Arbor's root count.
	ErrIndexOutOfBounds = errors.New("index out of bounds")

	// ErrExpr is returned for semantic errors raised while evaluating a
	// path/comparison/arithmetic expression against an Arbor.
	ErrExpr = errors.New("expression evaluation error")

	// ErrPoolNotLoaded is the panic-worthy condition guarded at the typed
	// view layer: a projection-decoded Arbor was asked for a pool outside
	// its DecodePlan. It is exported so the recover()-based test harness
	// can match on it, but production code must never handle it as a
	// recoverable error — see Arbor.assertPoolLoaded.
	ErrPoolNotLoaded = errors.New("pool not loaded in this projection view")
)

// SchemaPath / DataPath diagnostics are attached to errors wherever both
// apply (spec §6.3): a JSON Pointer into the schema and a JSON Pointer into
// the input data.

// TypeMismatchError reports a value whose runtime type disagrees with its
// schema's declared type.
type TypeMismatchError struct {
	Expected   string
	Got        string
	SchemaPath string
	DataPath   string
}

func (e *TypeMismatchError) Error() string {
	return "type mismatch: expected " + e.Expected + ", got " + e.Got +
		" (schema: " + e.SchemaPath + ", data: " + e.DataPath + ")"
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

func (e *TypeMismatchError) Code() string { return "type_mismatch" }

func (e *TypeMismatchError) Params() map[string]any {
	return map[string]any{"Expected": e.Expected, "Got": e.Got}
}

// Localize renders e in loc's locale, falling back to Error() if loc is
// nil (spec §6.3's optional localization, mirroring the teacher's
// EvaluationError.Localize).
func (e *TypeMismatchError) Localize(loc *i18n.Localizer) string { return localize(e, loc) }

// MissingRequiredFieldError reports a required property absent from input.
type MissingRequiredFieldError struct {
	Field      string
	SchemaPath string
	DataPath   string
}

func (e *MissingRequiredFieldError) Error() string {
	return "missing required field " + e.Field + " (schema: " + e.SchemaPath + ", data: " + e.DataPath + ")"
}

func (e *MissingRequiredFieldError) Unwrap() error { return ErrMissingRequiredField }

func (e *MissingRequiredFieldError) Code() string { return "missing_required_field" }

func (e *MissingRequiredFieldError) Params() map[string]any {
	return map[string]any{"Field": e.Field}
}

func (e *MissingRequiredFieldError) Localize(loc *i18n.Localizer) string { return localize(e, loc) }

// UnexpectedNullError reports a null value against a non-nullable schema.
type UnexpectedNullError struct {
	SchemaPath string
	DataPath   string
}

func (e *UnexpectedNullError) Error() string {
	return "unexpected null at " + e.DataPath + " (schema: " + e.SchemaPath + ")"
}

func (e *UnexpectedNullError) Unwrap() error { return ErrUnexpectedNull }

func (e *UnexpectedNullError) Code() string { return "unexpected_null" }

func (e *UnexpectedNullError) Params() map[string]any { return nil }

func (e *UnexpectedNullError) Localize(loc *i18n.Localizer) string { return localize(e, loc) }

// UnknownPropertyError reports a property rejected by a closed object schema.
type UnknownPropertyError struct {
	Property   string
	SchemaPath string
	DataPath   string
}

func (e *UnknownPropertyError) Error() string {
	return "unknown property " + e.Property + " (schema: " + e.SchemaPath + ", data: " + e.DataPath + ")"
}

func (e *UnknownPropertyError) Unwrap() error { return ErrUnknownProperty }

func (e *UnknownPropertyError) Code() string { return "unknown_property" }

func (e *UnknownPropertyError) Params() map[string]any {
	return map[string]any{"Property": e.Property}
}

func (e *UnknownPropertyError) Localize(loc *i18n.Localizer) string { return localize(e, loc) }

// TupleOverflowError reports too many elements for a closed tuple schema.
type TupleOverflowError struct {
	Expected   int
	Got        int
	SchemaPath string
	DataPath   string
}

func (e *TupleOverflowError) Error() string {
	return "tuple overflow: expected at most " + itoa(e.Expected) + " items, got " + itoa(e.Got)
}

func (e *TupleOverflowError) Unwrap() error { return ErrTupleOverflow }

func (e *TupleOverflowError) Code() string { return "tuple_overflow" }

func (e *TupleOverflowError) Params() map[string]any {
	return map[string]any{"Expected": itoa(e.Expected), "Got": itoa(e.Got)}
}

func (e *TupleOverflowError) Localize(loc *i18n.Localizer) string { return localize(e, loc) }

// UnsupportedKeywordError reports a schema keyword outside the storage
// compiler's supported subset.
type UnsupportedKeywordError struct {
	Keyword string
	Path    string
}

func (e *UnsupportedKeywordError) Error() string {
	return "unsupported keyword " + e.Keyword + " at " + e.Path
}

func (e *UnsupportedKeywordError) Unwrap() error { return ErrUnsupportedKeyword }

func (e *UnsupportedKeywordError) Code() string { return "unsupported_keyword" }

func (e *UnsupportedKeywordError) Params() map[string]any {
	return map[string]any{"Keyword": e.Keyword}
}

func (e *UnsupportedKeywordError) Localize(loc *i18n.Localizer) string { return localize(e, loc) }

// SchemaRejectError reports a value parsed against a Reject schema.
type SchemaRejectError struct {
	SchemaPath string
	DataPath   string
}

func (e *SchemaRejectError) Error() string {
	return "schema at " + e.SchemaPath + " rejects all values (data: " + e.DataPath + ")"
}

func (e *SchemaRejectError) Unwrap() error { return ErrSchemaReject }

func (e *SchemaRejectError) Code() string { return "schema_reject" }

func (e *SchemaRejectError) Params() map[string]any { return nil }

func (e *SchemaRejectError) Localize(loc *i18n.Localizer) string { return localize(e, loc) }

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
