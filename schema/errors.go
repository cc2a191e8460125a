package schema

import "errors"

var (
	// ErrUnsupportedKeyword is returned by the reject phase when a schema
	// document uses a keyword outside the storage-relevant subset (spec
	// §3.4 "Reject phase", §4.3).
	ErrUnsupportedKeyword = errors.New("unsupported keyword")

	// ErrInvalidSchema is returned for structurally invalid schema
	// documents: a schema position holding a value that is neither an
	// object nor a boolean, an unknown or malformed type keyword, a type
	// union other than the nullable pattern.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrRefNotFound is returned when a $ref is not of the local form
	// #/$defs/<name>, or names a $defs entry that was never collected.
	ErrRefNotFound = errors.New("$ref target not found")
)

// RejectedKeywordError names the unsupported keyword and its location in
// the source schema document.
type RejectedKeywordError struct {
	Keyword string
	Path    string
}

func (e *RejectedKeywordError) Error() string {
	return "unsupported keyword " + e.Keyword + " at " + e.Path
}

func (e *RejectedKeywordError) Unwrap() error { return ErrUnsupportedKeyword }

// RefNotFoundError names the missing $ref target.
type RefNotFoundError struct {
	Ref  string
	Path string
}

func (e *RefNotFoundError) Error() string {
	return "$ref " + e.Ref + " not found (at " + e.Path + ")"
}

func (e *RefNotFoundError) Unwrap() error { return ErrRefNotFound }
