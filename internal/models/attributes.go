package models

import "strings"

// Value is one attribute value. Binary content is carried as a raw byte
// string; URL references (attr:< URL) keep the unresolved URL and are
// flagged so the writer can emit them back in reference form.
type Value struct {
	data string
	ref  bool
}

// NewValue wraps a plain or binary value.
func NewValue(s string) Value {
	return Value{data: s}
}

// NewRefValue wraps an unresolved URL reference.
func NewRefValue(url string) Value {
	return Value{data: url, ref: true}
}

// String returns the value content (for references, the URL itself).
func (v Value) String() string { return v.data }

// Bytes returns the value content as bytes.
func (v Value) Bytes() []byte { return []byte(v.data) }

// IsRef reports whether the value is an unresolved URL reference.
func (v Value) IsRef() bool { return v.ref }

// Attribute is an ordered (name, values) pair as stored in a collection.
type Attribute struct {
	Name   string
	Values []Value
}

// Attributes is an ordered multi-valued attribute collection. Names are
// matched case-insensitively; the spelling of the first occurrence is
// preserved. All mutation methods return a new collection, so a parsed
// entry can be shared freely across goroutines.
type Attributes struct {
	names  []string           // first-occurrence spelling, insertion order
	values map[string][]Value // keyed by lower-cased name
}

// NewAttributes returns an empty collection. The zero value is also usable.
func NewAttributes() Attributes {
	return Attributes{}
}

// AttributesFromList builds a collection from ordered (name, values)
// pairs in one pass, merging repeated names in encounter order. Pairs
// with empty names or no values are dropped.
func AttributesFromList(list []Attribute) Attributes {
	a := Attributes{values: make(map[string][]Value, len(list))}
	for _, attr := range list {
		if attr.Name == "" || len(attr.Values) == 0 {
			continue
		}
		key := strings.ToLower(attr.Name)
		if _, ok := a.values[key]; !ok {
			a.names = append(a.names, attr.Name)
		}
		a.values[key] = append(a.values[key], attr.Values...)
	}
	return a
}

// Len returns the number of distinct attribute names.
func (a Attributes) Len() int {
	return len(a.names)
}

// Names returns the attribute names in insertion order, original spelling.
func (a Attributes) Names() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// Get returns the ordered values for name (case-insensitive lookup).
func (a Attributes) Get(name string) ([]Value, bool) {
	vals, ok := a.values[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	out := make([]Value, len(vals))
	copy(out, vals)
	return out, true
}

// GetStrings returns the values for name as plain strings.
func (a Attributes) GetStrings(name string) []string {
	vals := a.values[strings.ToLower(name)]
	if len(vals) == 0 {
		return nil
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.String()
	}
	return out
}

// First returns the first value for name, if any.
func (a Attributes) First(name string) (Value, bool) {
	vals := a.values[strings.ToLower(name)]
	if len(vals) == 0 {
		return Value{}, false
	}
	return vals[0], true
}

// Has reports whether the collection contains name.
func (a Attributes) Has(name string) bool {
	_, ok := a.values[strings.ToLower(name)]
	return ok
}

// HasValue reports whether name carries the given value. The comparison
// folds case, matching the directory's caseIgnoreMatch behavior for the
// string attributes this engine deals in.
func (a Attributes) HasValue(name, value string) bool {
	for _, v := range a.values[strings.ToLower(name)] {
		if strings.EqualFold(v.String(), value) {
			return true
		}
	}
	return false
}

// List returns the collection as ordered (name, values) pairs.
func (a Attributes) List() []Attribute {
	out := make([]Attribute, 0, len(a.names))
	for _, name := range a.names {
		vals := a.values[strings.ToLower(name)]
		cp := make([]Value, len(vals))
		copy(cp, vals)
		out = append(out, Attribute{Name: name, Values: cp})
	}
	return out
}

// Add appends values to name, creating the attribute if absent, and
// returns the new collection. Empty names and empty value lists leave the
// collection unchanged.
func (a Attributes) Add(name string, values ...Value) Attributes {
	if name == "" || len(values) == 0 {
		return a
	}
	key := strings.ToLower(name)
	next := a.clone()
	if _, ok := next.values[key]; !ok {
		next.names = append(next.names, name)
	}
	merged := make([]Value, 0, len(next.values[key])+len(values))
	merged = append(merged, next.values[key]...)
	merged = append(merged, values...)
	next.values[key] = merged
	return next
}

// AddStrings appends plain string values to name.
func (a Attributes) AddStrings(name string, values ...string) Attributes {
	vals := make([]Value, len(values))
	for i, s := range values {
		vals[i] = NewValue(s)
	}
	return a.Add(name, vals...)
}

// Set replaces the values of name, keeping its position when it already
// exists and appending it otherwise.
func (a Attributes) Set(name string, values ...Value) Attributes {
	if name == "" {
		return a
	}
	if len(values) == 0 {
		return a.Remove(name)
	}
	key := strings.ToLower(name)
	next := a.clone()
	if _, ok := next.values[key]; !ok {
		next.names = append(next.names, name)
	}
	cp := make([]Value, len(values))
	copy(cp, values)
	next.values[key] = cp
	return next
}

// Remove drops name from the collection.
func (a Attributes) Remove(name string) Attributes {
	key := strings.ToLower(name)
	if _, ok := a.values[key]; !ok {
		return a
	}
	next := Attributes{
		names:  make([]string, 0, len(a.names)-1),
		values: make(map[string][]Value, len(a.values)-1),
	}
	for _, n := range a.names {
		if strings.ToLower(n) == key {
			continue
		}
		next.names = append(next.names, n)
		next.values[strings.ToLower(n)] = a.values[strings.ToLower(n)]
	}
	return next
}

// RemoveValue drops a single value (case-folded comparison) from name,
// removing the attribute entirely when its last value goes away.
func (a Attributes) RemoveValue(name, value string) Attributes {
	key := strings.ToLower(name)
	vals, ok := a.values[key]
	if !ok {
		return a
	}
	kept := make([]Value, 0, len(vals))
	for _, v := range vals {
		if !strings.EqualFold(v.String(), value) {
			kept = append(kept, v)
		}
	}
	if len(kept) == len(vals) {
		return a
	}
	if len(kept) == 0 {
		return a.Remove(name)
	}
	next := a.clone()
	next.values[key] = kept
	return next
}

// Equal reports whether both collections hold the same attributes with the
// same ordered values. Name order and name case are not significant; value
// order and value bytes are.
func (a Attributes) Equal(other Attributes) bool {
	if len(a.values) != len(other.values) {
		return false
	}
	for key, vals := range a.values {
		ovals, ok := other.values[key]
		if !ok || len(vals) != len(ovals) {
			return false
		}
		for i, v := range vals {
			if v != ovals[i] {
				return false
			}
		}
	}
	return true
}

// clone copies the name list and the map; value slices are shared, which
// is safe because no method mutates a stored slice in place.
func (a Attributes) clone() Attributes {
	next := Attributes{
		names:  make([]string, len(a.names)),
		values: make(map[string][]Value, len(a.values)+1),
	}
	copy(next.names, a.names)
	for k, v := range a.values {
		next.values[k] = v
	}
	return next
}
