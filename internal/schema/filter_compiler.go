package schema

import (
	"fmt"
	"strings"

	"github.com/ldifkit/ldifkit/internal/models"
)

// Predicate is a compiled filter: a function deciding whether a single
// entry matches.
type Predicate func(models.Entry) bool

// MatchAll matches every entry.
func MatchAll(models.Entry) bool { return true }

// CompileFilterString parses and compiles a filter expression in one step.
func CompileFilterString(expr string) (Predicate, error) {
	filter, err := ParseFilter(expr)
	if err != nil {
		return nil, err
	}
	return filter.Compile()
}

// Compile compiles the filter into a predicate. Per-filter work such as
// parsing a DN value happens once here instead of once per entry, which
// matters when a predicate runs over a large stream.
func (f *Filter) Compile() (Predicate, error) {
	if f == nil {
		return nil, fmt.Errorf("filter is nil")
	}

	switch f.Type {
	case FilterTypeAnd:
		return compileAnd(f.Filters)
	case FilterTypeOr:
		return compileOr(f.Filters)
	case FilterTypeNot:
		return compileNot(f.Filters)
	case FilterTypeEquality, FilterTypeApproxMatch:
		return compileEquality(f.Attribute, f.Value), nil
	case FilterTypePresent:
		return compilePresent(f.Attribute), nil
	case FilterTypeSubstrings:
		return compileSubstrings(f.Attribute, f.Value), nil
	case FilterTypeGreaterOrEqual:
		return compileCompare(f.Attribute, f.Value, false), nil
	case FilterTypeLessOrEqual:
		return compileCompare(f.Attribute, f.Value, true), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %d", f.Type)
	}
}

// compileAll compiles each sub-filter in order.
func compileAll(subFilters []*Filter) ([]Predicate, error) {
	preds := make([]Predicate, 0, len(subFilters))
	for _, sf := range subFilters {
		p, err := sf.Compile()
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// compileAnd compiles an AND filter: (&(filter1)(filter2)...)
// An empty AND matches everything.
func compileAnd(subFilters []*Filter) (Predicate, error) {
	preds, err := compileAll(subFilters)
	if err != nil {
		return nil, err
	}
	return func(e models.Entry) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}, nil
}

// compileOr compiles an OR filter: (|(filter1)(filter2)...)
// An empty OR matches nothing.
func compileOr(subFilters []*Filter) (Predicate, error) {
	preds, err := compileAll(subFilters)
	if err != nil {
		return nil, err
	}
	return func(e models.Entry) bool {
		for _, p := range preds {
			if p(e) {
				return true
			}
		}
		return false
	}, nil
}

// compileNot compiles a NOT filter: (!(filter))
func compileNot(subFilters []*Filter) (Predicate, error) {
	if len(subFilters) != 1 {
		return nil, fmt.Errorf("NOT filter must have exactly one sub-filter")
	}
	p, err := subFilters[0].Compile()
	if err != nil {
		return nil, err
	}
	return func(e models.Entry) bool { return !p(e) }, nil
}

// compileEquality compiles an equality filter: (attr=value)
func compileEquality(attr, value string) Predicate {
	if isVirtualAttribute(attr) {
		want, err := models.ParseDN(value)
		if err != nil {
			return func(e models.Entry) bool {
				return strings.EqualFold(e.DN().String(), value)
			}
		}
		return func(e models.Entry) bool { return e.DN().Equal(want) }
	}
	return func(e models.Entry) bool {
		return e.Attributes().HasValue(attr, value)
	}
}

// compilePresent compiles a presence filter: (attr=*)
func compilePresent(attr string) Predicate {
	if isVirtualAttribute(attr) {
		return func(e models.Entry) bool { return !e.DN().IsZero() }
	}
	return func(e models.Entry) bool { return e.Attributes().Has(attr) }
}

// compileSubstrings compiles a substring filter: (attr=ab*cd*)
func compileSubstrings(attr, pattern string) Predicate {
	if isVirtualAttribute(attr) {
		return func(e models.Entry) bool {
			return matchSubstrings(pattern, e.DN().String())
		}
	}
	return func(e models.Entry) bool {
		for _, v := range e.Attributes().GetStrings(attr) {
			if matchSubstrings(pattern, v) {
				return true
			}
		}
		return false
	}
}

// compileCompare compiles the ordering filters (attr>=value) and
// (attr<=value).
func compileCompare(attr, value string, lessOrEqual bool) Predicate {
	return func(e models.Entry) bool {
		for _, v := range e.Attributes().GetStrings(attr) {
			c := compareValues(v, value)
			if lessOrEqual {
				if c <= 0 {
					return true
				}
			} else if c >= 0 {
				return true
			}
		}
		return false
	}
}
