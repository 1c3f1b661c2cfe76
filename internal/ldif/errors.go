// Package ldif implements the LDIF wire format: tokenizing the
// line-oriented grammar, assembling entries and change records, and
// serializing them back with canonical folding and encoding.
package ldif

import (
	"errors"
	"fmt"
)

// ErrRecordTooLarge is returned when one record exceeds the configured
// byte limit.
var ErrRecordTooLarge = errors.New("record exceeds size limit")

// MalformedLineError reports a physical line that fits no production of
// the grammar: no colon separator, an empty attribute name, or a line in
// an illegal position.
type MalformedLineError struct {
	Line   int // 1-based physical line number
	Text   string
	Reason string
}

func (e *MalformedLineError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing ':' separator"
	}
	return fmt.Sprintf("line %d: malformed line %q: %s", e.Line, truncate(e.Text), reason)
}

// EncodingError reports declared base64 content that does not decode.
type EncodingError struct {
	Line int
	Name string // attribute carrying the undecodable value
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("line %d: attribute %s: invalid base64 value: %v", e.Line, e.Name, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// MissingDNError reports a record that does not open with a dn: line.
type MissingDNError struct {
	Line int // first line of the offending record
}

func (e *MissingDNError) Error() string {
	return fmt.Sprintf("line %d: record has no dn: line", e.Line)
}

// InvalidDNError reports a dn: (or newsuperior:) value that fails DN
// parsing.
type InvalidDNError struct {
	Line int
	DN   string
	Err  error
}

func (e *InvalidDNError) Error() string {
	return fmt.Sprintf("line %d: invalid DN %q: %v", e.Line, truncate(e.DN), e.Err)
}

func (e *InvalidDNError) Unwrap() error { return e.Err }

// UnknownChangeTypeError reports a changetype: value outside
// add/delete/modify/moddn/modrdn.
type UnknownChangeTypeError struct {
	Line       int
	ChangeType string
}

func (e *UnknownChangeTypeError) Error() string {
	return fmt.Sprintf("line %d: unknown changetype %q", e.Line, e.ChangeType)
}

// MalformedChangeRecordError reports a change record violating its
// type-specific sub-grammar, e.g. a modify block without an attribute
// declaration.
type MalformedChangeRecordError struct {
	Line   int
	Reason string
}

func (e *MalformedChangeRecordError) Error() string {
	return fmt.Sprintf("line %d: malformed change record: %s", e.Line, e.Reason)
}

// UnencodableValueError is the writer's guard against a value representable
// neither in plain nor in base64 form. Base64 covers every byte sequence,
// so this fires only on misuse (an unresolvable reference asked to inline).
type UnencodableValueError struct {
	DN   string
	Name string
}

func (e *UnencodableValueError) Error() string {
	return fmt.Sprintf("entry %s: attribute %s: value cannot be encoded", e.DN, e.Name)
}

// RecordError ties a parse failure to the 1-based index of the record it
// occurred in. The wrapped error is one of the taxonomy above.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Warning is a non-fatal diagnostic attached to a line, e.g. a skipped
// control or an unexpected version number.
type Warning struct {
	Line    int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

func truncate(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
