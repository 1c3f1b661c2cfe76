package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ldifkit/ldifkit/internal/models"
)

// FilterType represents the type of LDAP filter
type FilterType int

const (
	FilterTypeAnd FilterType = iota
	FilterTypeOr
	FilterTypeNot
	FilterTypeEquality
	FilterTypePresent
	FilterTypeApproxMatch
	FilterTypeGreaterOrEqual
	FilterTypeLessOrEqual
	FilterTypeSubstrings
)

// Filter represents an LDAP search filter
type Filter struct {
	Type      FilterType
	Attribute string
	Value     string
	Filters   []*Filter
}

// virtualAttributes are matched against the entry itself rather than its
// attribute collection. The dn pseudo-attribute compares against the
// entry's distinguished name.
var virtualAttributes = map[string]bool{
	"dn": true,
}

// isVirtualAttribute checks if an attribute is virtual (not stored in the
// attribute collection)
func isVirtualAttribute(attr string) bool {
	return virtualAttributes[strings.ToLower(attr)]
}

// ParseFilter parses an LDAP filter string
// Supports basic filter syntax: (&(objectClass=*)), (uid=john), (cn=J*n),
// (uidNumber>=1000), etc.
func ParseFilter(filterStr string) (*Filter, error) {
	if filterStr == "" {
		// Empty filter means match all
		return &Filter{
			Type:      FilterTypePresent,
			Attribute: "objectClass",
		}, nil
	}

	filterStr = strings.TrimSpace(filterStr)
	if !strings.HasPrefix(filterStr, "(") || !strings.HasSuffix(filterStr, ")") {
		return nil, fmt.Errorf("filter must be enclosed in parentheses")
	}

	filter, _, err := parseFilterRecursive(filterStr, 0)
	return filter, err
}

// parseFilterRecursive recursively parses filter components
func parseFilterRecursive(filterStr string, pos int) (*Filter, int, error) {
	if pos >= len(filterStr) {
		return nil, pos, fmt.Errorf("unexpected end of filter")
	}

	if filterStr[pos] != '(' {
		return nil, pos, fmt.Errorf("expected '(' at position %d", pos)
	}

	pos++ // skip '('

	if pos >= len(filterStr) {
		return nil, pos, fmt.Errorf("unexpected end of filter")
	}

	// Check for complex filters (&, |, !)
	if filterStr[pos] == '&' {
		pos++ // skip '&'
		filter := &Filter{Type: FilterTypeAnd}

		for pos < len(filterStr) && filterStr[pos] == '(' {
			subFilter, newPos, err := parseFilterRecursive(filterStr, pos)
			if err != nil {
				return nil, pos, err
			}
			filter.Filters = append(filter.Filters, subFilter)
			pos = newPos

			if pos >= len(filterStr) {
				return nil, pos, fmt.Errorf("unexpected end of filter")
			}
		}

		if pos >= len(filterStr) || filterStr[pos] != ')' {
			return nil, pos, fmt.Errorf("expected ')' at position %d", pos)
		}
		pos++ // skip ')'

		return filter, pos, nil
	}

	if filterStr[pos] == '|' {
		pos++ // skip '|'
		filter := &Filter{Type: FilterTypeOr}

		for pos < len(filterStr) && filterStr[pos] == '(' {
			subFilter, newPos, err := parseFilterRecursive(filterStr, pos)
			if err != nil {
				return nil, pos, err
			}
			filter.Filters = append(filter.Filters, subFilter)
			pos = newPos

			if pos >= len(filterStr) {
				return nil, pos, fmt.Errorf("unexpected end of filter")
			}
		}

		if pos >= len(filterStr) || filterStr[pos] != ')' {
			return nil, pos, fmt.Errorf("expected ')' at position %d", pos)
		}
		pos++ // skip ')'

		return filter, pos, nil
	}

	if filterStr[pos] == '!' {
		pos++ // skip '!'
		subFilter, newPos, err := parseFilterRecursive(filterStr, pos)
		if err != nil {
			return nil, pos, err
		}

		filter := &Filter{
			Type:    FilterTypeNot,
			Filters: []*Filter{subFilter},
		}

		if newPos >= len(filterStr) || filterStr[newPos] != ')' {
			return nil, newPos, fmt.Errorf("expected ')' at position %d", newPos)
		}

		return filter, newPos + 1, nil
	}

	// Simple filter: attribute=value
	endPos := strings.IndexByte(filterStr[pos:], ')')
	if endPos == -1 {
		return nil, pos, fmt.Errorf("expected ')'")
	}

	filterPart := filterStr[pos : pos+endPos]

	// Parse attribute=value, attribute>=value, attribute=*, etc. The
	// operator suffix (>=, <=, ~=) lands on the attribute side of the
	// first '=', which keeps DN values with embedded '=' intact.
	parts := strings.SplitN(filterPart, "=", 2)
	if len(parts) != 2 {
		return nil, pos, fmt.Errorf("invalid filter format: %s", filterPart)
	}

	attribute := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])

	filterType := FilterTypeEquality
	switch {
	case strings.HasSuffix(attribute, ">"):
		filterType = FilterTypeGreaterOrEqual
		attribute = strings.TrimSpace(strings.TrimSuffix(attribute, ">"))
	case strings.HasSuffix(attribute, "<"):
		filterType = FilterTypeLessOrEqual
		attribute = strings.TrimSpace(strings.TrimSuffix(attribute, "<"))
	case strings.HasSuffix(attribute, "~"):
		filterType = FilterTypeApproxMatch
		attribute = strings.TrimSpace(strings.TrimSuffix(attribute, "~"))
	case value == "*":
		filterType = FilterTypePresent
	case strings.Contains(value, "*"):
		filterType = FilterTypeSubstrings
	}

	if attribute == "" {
		return nil, pos, fmt.Errorf("invalid filter format: %s", filterPart)
	}

	filter := &Filter{
		Type:      filterType,
		Attribute: attribute,
		Value:     value,
	}

	return filter, pos + endPos + 1, nil
}

// Matches checks if an entry matches this filter
func (f *Filter) Matches(entry models.Entry) bool {
	switch f.Type {
	case FilterTypeAnd:
		for _, subFilter := range f.Filters {
			if !subFilter.Matches(entry) {
				return false
			}
		}
		return true

	case FilterTypeOr:
		for _, subFilter := range f.Filters {
			if subFilter.Matches(entry) {
				return true
			}
		}
		return false

	case FilterTypeNot:
		if len(f.Filters) > 0 {
			return !f.Filters[0].Matches(entry)
		}
		return true

	case FilterTypePresent:
		if isVirtualAttribute(f.Attribute) {
			return !entry.DN().IsZero()
		}
		return entry.Attributes().Has(f.Attribute)

	case FilterTypeEquality, FilterTypeApproxMatch:
		if isVirtualAttribute(f.Attribute) {
			return matchDN(entry.DN(), f.Value)
		}
		return entry.Attributes().HasValue(f.Attribute, f.Value)

	case FilterTypeSubstrings:
		if isVirtualAttribute(f.Attribute) {
			return matchSubstrings(f.Value, entry.DN().String())
		}
		for _, v := range entry.Attributes().GetStrings(f.Attribute) {
			if matchSubstrings(f.Value, v) {
				return true
			}
		}
		return false

	case FilterTypeGreaterOrEqual:
		for _, v := range entry.Attributes().GetStrings(f.Attribute) {
			if compareValues(v, f.Value) >= 0 {
				return true
			}
		}
		return false

	case FilterTypeLessOrEqual:
		for _, v := range entry.Attributes().GetStrings(f.Attribute) {
			if compareValues(v, f.Value) <= 0 {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// matchDN compares the virtual dn attribute component-wise, falling back
// to a case-folded string comparison when the filter value is not a
// parseable DN.
func matchDN(dn models.DN, value string) bool {
	want, err := models.ParseDN(value)
	if err != nil {
		return strings.EqualFold(dn.String(), value)
	}
	return dn.Equal(want)
}

// matchSubstrings reports whether s matches a wildcard pattern, folding
// case. Segments between '*' must appear in order; the first and last
// segments anchor as prefix and suffix.
func matchSubstrings(pattern, s string) bool {
	p := strings.ToLower(pattern)
	t := strings.ToLower(s)

	segs := strings.Split(p, "*")
	if len(segs) == 1 {
		// No wildcard, degenerates to equality.
		return t == p
	}

	if !strings.HasPrefix(t, segs[0]) {
		return false
	}
	t = t[len(segs[0]):]

	last := segs[len(segs)-1]
	if !strings.HasSuffix(t, last) {
		return false
	}
	t = t[:len(t)-len(last)]

	for _, seg := range segs[1 : len(segs)-1] {
		if seg == "" {
			continue
		}
		i := strings.Index(t, seg)
		if i == -1 {
			return false
		}
		t = t[i+len(seg):]
	}
	return true
}

// compareValues orders two attribute values: numerically when both parse
// as integers (uidNumber, gidNumber), case-folded lexicographically
// otherwise. Generalized-time values order correctly under the
// lexicographic branch.
func compareValues(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}

	la, lb := strings.ToLower(a), strings.ToLower(b)
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	}
	return 0
}

// String returns a string representation of the filter
func (f *Filter) String() string {
	switch f.Type {
	case FilterTypeAnd:
		parts := []string{"(&"}
		for _, subFilter := range f.Filters {
			parts = append(parts, subFilter.String())
		}
		parts = append(parts, ")")
		return strings.Join(parts, "")

	case FilterTypeOr:
		parts := []string{"(|"}
		for _, subFilter := range f.Filters {
			parts = append(parts, subFilter.String())
		}
		parts = append(parts, ")")
		return strings.Join(parts, "")

	case FilterTypeNot:
		if len(f.Filters) > 0 {
			return "(!" + f.Filters[0].String() + ")"
		}
		return "(!)"

	case FilterTypePresent:
		return fmt.Sprintf("(%s=*)", f.Attribute)

	case FilterTypeEquality, FilterTypeSubstrings:
		return fmt.Sprintf("(%s=%s)", f.Attribute, f.Value)

	case FilterTypeApproxMatch:
		return fmt.Sprintf("(%s~=%s)", f.Attribute, f.Value)

	case FilterTypeGreaterOrEqual:
		return fmt.Sprintf("(%s>=%s)", f.Attribute, f.Value)

	case FilterTypeLessOrEqual:
		return fmt.Sprintf("(%s<=%s)", f.Attribute, f.Value)

	default:
		return ""
	}
}
