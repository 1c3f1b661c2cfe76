package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

var (
	// ErrEmptyDN is returned when parsing an empty or blank DN string.
	ErrEmptyDN = errors.New("empty DN")
	// ErrEmptyRDNComponent is returned when a DN contains an RDN with no
	// attribute-value pairs or an empty attribute type.
	ErrEmptyRDNComponent = errors.New("empty RDN component")
)

// AttributeTypeAndValue is a single type=value pair inside an RDN.
type AttributeTypeAndValue struct {
	Type  string
	Value string
}

// RDN is one relative distinguished name. Multi-valued RDNs
// (cn=a+sn=b) carry more than one pair.
type RDN struct {
	attrs []AttributeTypeAndValue
}

// String reconstructs the RDN with escaped values, e.g. "cn=John Doe".
func (r RDN) String() string {
	parts := make([]string, len(r.attrs))
	for i, av := range r.attrs {
		parts[i] = av.Type + "=" + ldap.EscapeDN(av.Value)
	}
	return strings.Join(parts, "+")
}

// Value returns the value of the first attribute pair, which is what
// callers usually mean by "the RDN value" (e.g. "John Doe" for
// cn=John Doe,ou=people,dc=example,dc=com).
func (r RDN) Value() string {
	if len(r.attrs) == 0 {
		return ""
	}
	return r.attrs[0].Value
}

func (r RDN) equal(o RDN) bool {
	if len(r.attrs) != len(o.attrs) {
		return false
	}
	for i, av := range r.attrs {
		if !strings.EqualFold(av.Type, o.attrs[i].Type) {
			return false
		}
		if !strings.EqualFold(av.Value, o.attrs[i].Value) {
			return false
		}
	}
	return true
}

// DN is a parsed distinguished name. A DN is constructed once by ParseDN
// and never modified; derived names (Parent, Ancestor) are new values.
type DN struct {
	raw  string
	rdns []RDN
}

// ParseDN parses an RFC 4514 DN string. The original (trimmed) string form
// is retained and returned by String; comparisons use the parsed components.
func ParseDN(s string) (DN, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return DN{}, ErrEmptyDN
	}

	parsed, err := ldap.ParseDN(raw)
	if err != nil {
		return DN{}, fmt.Errorf("parse DN %q: %w", raw, err)
	}
	if len(parsed.RDNs) == 0 {
		return DN{}, ErrEmptyDN
	}

	rdns := make([]RDN, 0, len(parsed.RDNs))
	for _, r := range parsed.RDNs {
		if len(r.Attributes) == 0 {
			return DN{}, fmt.Errorf("parse DN %q: %w", raw, ErrEmptyRDNComponent)
		}
		attrs := make([]AttributeTypeAndValue, 0, len(r.Attributes))
		for _, av := range r.Attributes {
			typ := strings.TrimSpace(av.Type)
			if typ == "" {
				return DN{}, fmt.Errorf("parse DN %q: %w", raw, ErrEmptyRDNComponent)
			}
			attrs = append(attrs, AttributeTypeAndValue{Type: typ, Value: av.Value})
		}
		rdns = append(rdns, RDN{attrs: attrs})
	}

	return DN{raw: raw, rdns: rdns}, nil
}

// String returns the DN as it was given to ParseDN (leading/trailing
// whitespace trimmed). Derived DNs return a reconstructed form.
func (d DN) String() string {
	if d.raw != "" {
		return d.raw
	}
	return d.reconstruct()
}

// Canonical returns a normalized form for comparison and display:
// attribute types lower-cased, values escaped, RDNs joined with ",".
func (d DN) Canonical() string {
	parts := make([]string, len(d.rdns))
	for i, r := range d.rdns {
		avs := make([]string, len(r.attrs))
		for j, av := range r.attrs {
			avs[j] = strings.ToLower(av.Type) + "=" + ldap.EscapeDN(av.Value)
		}
		parts[i] = strings.Join(avs, "+")
	}
	return strings.Join(parts, ",")
}

func (d DN) reconstruct() string {
	parts := make([]string, len(d.rdns))
	for i, r := range d.rdns {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// IsZero reports whether the DN is the zero value (never produced by a
// successful ParseDN).
func (d DN) IsZero() bool {
	return len(d.rdns) == 0
}

// Depth returns the number of RDN components, e.g. 3 for "cn=a,ou=b,dc=c".
func (d DN) Depth() int {
	return len(d.rdns)
}

// RDN returns the leftmost (most specific) component, e.g. "cn=a".
func (d DN) RDN() RDN {
	if len(d.rdns) == 0 {
		return RDN{}
	}
	return d.rdns[0]
}

// Equal compares component-wise with case-insensitive attribute types and
// values, per directory matching semantics. The original string forms play
// no part: "CN=Admin,DC=X" equals "cn=admin,dc=x".
func (d DN) Equal(other DN) bool {
	if len(d.rdns) != len(other.rdns) {
		return false
	}
	for i, r := range d.rdns {
		if !r.equal(other.rdns[i]) {
			return false
		}
	}
	return true
}

// Parent returns the DN with the leftmost RDN removed. The second return is
// false for single-component (root) DNs.
func (d DN) Parent() (DN, bool) {
	if len(d.rdns) < 2 {
		return DN{}, false
	}
	parent := DN{rdns: d.rdns[1:]}
	parent.raw = parent.reconstruct()
	return parent, true
}

// Ancestor returns the ancestor with the given depth, e.g. Ancestor(1) of
// "cn=a,ou=b,dc=c" is "dc=c". The second return is false unless
// 0 < depth < Depth().
func (d DN) Ancestor(depth int) (DN, bool) {
	if depth <= 0 || depth >= len(d.rdns) {
		return DN{}, false
	}
	anc := DN{rdns: d.rdns[len(d.rdns)-depth:]}
	anc.raw = anc.reconstruct()
	return anc, true
}

// AncestorOf reports whether d is a proper ancestor of other, at any
// distance. A DN is not an ancestor of itself.
func (d DN) AncestorOf(other DN) bool {
	off := len(other.rdns) - len(d.rdns)
	if off <= 0 {
		return false
	}
	for i, r := range d.rdns {
		if !r.equal(other.rdns[i+off]) {
			return false
		}
	}
	return true
}

// IsChildOf reports whether parent is the immediate parent of d.
func (d DN) IsChildOf(parent DN) bool {
	return len(d.rdns) == len(parent.rdns)+1 && parent.AncestorOf(d)
}
