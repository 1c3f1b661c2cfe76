package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ldifkit/ldifkit/internal/models"
)

// RuleViolationError is one failed validation rule on one entry.
type RuleViolationError struct {
	DN      string
	Rule    string
	Message string
}

func (e *RuleViolationError) Error() string {
	return fmt.Sprintf("entry %s: %s: %s", e.DN, e.Rule, e.Message)
}

// ConflictingSchemaRuleError reports an attribute required by one
// asserted class and not allowed by another. The ambiguity is surfaced
// instead of being resolved by precedence.
type ConflictingSchemaRuleError struct {
	DN           string
	Attribute    string
	RequiredBy   string
	DisallowedBy string
}

func (e *ConflictingSchemaRuleError) Error() string {
	return fmt.Sprintf("entry %s: attribute %s is required by objectClass %s but not allowed by objectClass %s",
		e.DN, e.Attribute, e.RequiredBy, e.DisallowedBy)
}

// Rule is one named check over a single entry. A nil or empty return
// means the entry passes.
type Rule interface {
	Name() string
	Check(e models.Entry) []error
}

// Built-in rule names, as they appear in violation messages.
const (
	RuleDN          = "dn"
	RuleObjectClass = "object-class-present"
	RuleAttrName    = "attribute-name"
	RuleRequired    = "required-attributes"
	RuleAllowed     = "allowed-attributes"
	RuleConflict    = "schema-conflict"
	RuleUniqueDN    = "unique-dn"
	RuleParent      = "parent-exists"
)

// attrNameRE is the attribute-name syntax: letters, digits and hyphen,
// starting with a letter.
var attrNameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

type dnRule struct{}

func (dnRule) Name() string { return RuleDN }

func (dnRule) Check(e models.Entry) []error {
	if e.DN().IsZero() {
		return []error{&RuleViolationError{Rule: RuleDN, Message: "entry has no DN"}}
	}
	return nil
}

type objectClassPresentRule struct{}

func (objectClassPresentRule) Name() string { return RuleObjectClass }

func (objectClassPresentRule) Check(e models.Entry) []error {
	if len(e.ObjectClasses()) == 0 {
		return []error{&RuleViolationError{
			DN:      e.DN().String(),
			Rule:    RuleObjectClass,
			Message: "entry has no objectClass values",
		}}
	}
	return nil
}

type attributeNameRule struct{}

func (attributeNameRule) Name() string { return RuleAttrName }

func (attributeNameRule) Check(e models.Entry) []error {
	var out []error
	for _, name := range e.Attributes().Names() {
		if !attrNameRE.MatchString(name) {
			out = append(out, &RuleViolationError{
				DN:      e.DN().String(),
				Rule:    RuleAttrName,
				Message: fmt.Sprintf("invalid attribute name %q", name),
			})
		}
	}
	return out
}

// requiredAttributesRule checks, for every asserted class the rule set
// knows, that all its required attributes are present. Unknown classes
// are violations only in strict mode.
type requiredAttributesRule struct {
	rules *RuleSet
}

func (requiredAttributesRule) Name() string { return RuleRequired }

func (r requiredAttributesRule) Check(e models.Entry) []error {
	var out []error
	for _, class := range e.ObjectClasses() {
		canonical, cr, ok := r.rules.Class(class)
		if !ok {
			if r.rules.Strict {
				out = append(out, &RuleViolationError{
					DN:      e.DN().String(),
					Rule:    RuleRequired,
					Message: fmt.Sprintf("unknown objectClass %q", class),
				})
			}
			continue
		}
		for _, req := range cr.Required {
			if !e.Attributes().Has(req) {
				out = append(out, &RuleViolationError{
					DN:      e.DN().String(),
					Rule:    RuleRequired,
					Message: fmt.Sprintf("missing required attribute %q for objectClass %s", req, canonical),
				})
			}
		}
	}
	return out
}

// allowedAttributesRule is the strict closed-world check: every
// attribute must be permitted by at least one asserted class.
type allowedAttributesRule struct {
	rules *RuleSet
}

func (allowedAttributesRule) Name() string { return RuleAllowed }

func (r allowedAttributesRule) Check(e models.Entry) []error {
	permitted := map[string]bool{strings.ToLower(models.AttrObjectClass): true}
	var asserted []string
	for _, class := range e.ObjectClasses() {
		canonical, cr, ok := r.rules.Class(class)
		if !ok {
			continue
		}
		asserted = append(asserted, canonical)
		for _, a := range cr.Required {
			permitted[strings.ToLower(a)] = true
		}
		for _, a := range cr.Allowed {
			permitted[strings.ToLower(a)] = true
		}
	}

	var out []error
	for _, name := range e.Attributes().Names() {
		if !permitted[strings.ToLower(name)] {
			out = append(out, &RuleViolationError{
				DN:      e.DN().String(),
				Rule:    RuleAllowed,
				Message: fmt.Sprintf("attribute %q not allowed by objectClasses %s", name, strings.Join(asserted, ", ")),
			})
		}
	}
	return out
}

// conflictRule surfaces rule-set ambiguity: an attribute required by one
// asserted class while another asserted, declared class excludes it.
// Classes declaring no attribute lists (top) never veto.
type conflictRule struct {
	rules *RuleSet
}

func (conflictRule) Name() string { return RuleConflict }

func (r conflictRule) Check(e models.Entry) []error {
	type classEntry struct {
		name string
		rule ClassRule
	}
	var known []classEntry
	seen := map[string]bool{}
	for _, class := range e.ObjectClasses() {
		canonical, cr, ok := r.rules.Class(class)
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		known = append(known, classEntry{name: canonical, rule: cr})
	}

	var out []error
	for _, a := range known {
		for _, req := range a.rule.Required {
			for _, b := range known {
				if b.name == a.name || !b.rule.Declared() {
					continue
				}
				if !b.rule.Permits(req) {
					out = append(out, &ConflictingSchemaRuleError{
						DN:           e.DN().String(),
						Attribute:    req,
						RequiredBy:   a.name,
						DisallowedBy: b.name,
					})
				}
			}
		}
	}
	return out
}

// Validator evaluates an ordered rule chain against entries. The
// structural rules always run; the class rules come from the configured
// rule set, with the closed-world and conflict rules joining in strict
// mode. Additional rules can be appended with AddRule.
type Validator struct {
	chain          []Rule
	failFast       bool
	requireParents bool
	uniqueDNs      bool
}

// NewValidator builds a Validator for the given rule set; nil selects
// DefaultRuleSet.
func NewValidator(rules *RuleSet) *Validator {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	v := &Validator{uniqueDNs: true}
	v.chain = []Rule{
		dnRule{},
		objectClassPresentRule{},
		attributeNameRule{},
		requiredAttributesRule{rules: rules},
	}
	if rules.Strict {
		v.chain = append(v.chain,
			allowedAttributesRule{rules: rules},
			conflictRule{rules: rules},
		)
	}
	return v
}

// SetFailFast stops at the first failing rule per entry, and at the
// first failing entry per collection.
func (v *Validator) SetFailFast(on bool) { v.failFast = on }

// SetRequireParents makes ValidateAll demand that an entry's parent DN
// exists in the collection whenever some other entry is its ancestor.
// Entries without any ancestor present count as collection roots.
func (v *Validator) SetRequireParents(on bool) { v.requireParents = on }

// SetUniqueDNs toggles the duplicate-DN check in ValidateAll. On by
// default.
func (v *Validator) SetUniqueDNs(on bool) { v.uniqueDNs = on }

// AddRule appends a custom rule to the chain.
func (v *Validator) AddRule(r Rule) { v.chain = append(v.chain, r) }

// ValidateEntry runs the rule chain over one entry and returns its
// violations, empty when the entry passes.
func (v *Validator) ValidateEntry(e models.Entry) []error {
	var out []error
	for _, r := range v.chain {
		out = append(out, r.Check(e)...)
		if v.failFast && len(out) > 0 {
			return out
		}
	}
	return out
}

// EntryResult carries the violations of one entry of a collection.
type EntryResult struct {
	Index      int // 1-based position in the collection
	DN         string
	Violations []error
}

// Report is the outcome of validating a collection. Results holds only
// the entries that failed.
type Report struct {
	Checked int
	Results []EntryResult
}

// Valid reports whether every entry passed.
func (r *Report) Valid() bool { return len(r.Results) == 0 }

// ViolationCount returns the total violations across all entries.
func (r *Report) ViolationCount() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Violations)
	}
	return n
}

// Summary renders a one-line outcome for logs.
func (r *Report) Summary() string {
	if r.Valid() {
		return fmt.Sprintf("%d entries valid", r.Checked)
	}
	return fmt.Sprintf("%d of %d entries invalid (%d violations)",
		len(r.Results), r.Checked, r.ViolationCount())
}

// ValidateAll validates a collection: the per-entry chain plus the
// cross-entry checks (duplicate DNs, and parent existence when enabled).
func (v *Validator) ValidateAll(entries []models.Entry) *Report {
	rep := &Report{Checked: len(entries)}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.DN().IsZero() {
			present[strings.ToLower(e.DN().Canonical())] = true
		}
	}

	firstSeen := make(map[string]int, len(entries))
	for i, e := range entries {
		violations := v.ValidateEntry(e)

		if v.uniqueDNs && !e.DN().IsZero() {
			key := strings.ToLower(e.DN().Canonical())
			if first, dup := firstSeen[key]; dup {
				violations = append(violations, &RuleViolationError{
					DN:      e.DN().String(),
					Rule:    RuleUniqueDN,
					Message: fmt.Sprintf("duplicate of entry %d", first),
				})
			} else {
				firstSeen[key] = i + 1
			}
		}

		if v.requireParents {
			if err := v.checkParent(e, entries, present); err != nil {
				violations = append(violations, err)
			}
		}

		if len(violations) > 0 {
			rep.Results = append(rep.Results, EntryResult{
				Index:      i + 1,
				DN:         e.DN().String(),
				Violations: violations,
			})
			if v.failFast {
				break
			}
		}
	}
	return rep
}

// checkParent flags an entry whose direct parent is missing while some
// other entry in the collection is its ancestor: a hole in the tree.
func (v *Validator) checkParent(e models.Entry, entries []models.Entry, present map[string]bool) error {
	parent, ok := e.DN().Parent()
	if !ok {
		return nil
	}
	if present[strings.ToLower(parent.Canonical())] {
		return nil
	}
	for _, other := range entries {
		if other.DN().AncestorOf(e.DN()) {
			return &RuleViolationError{
				DN:      e.DN().String(),
				Rule:    RuleParent,
				Message: fmt.Sprintf("parent %s not found in collection", parent.String()),
			}
		}
	}
	return nil
}
