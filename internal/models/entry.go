package models

import "strings"

// ObjectClass names this engine treats specially.
const (
	ObjectClassTop                  = "top"
	ObjectClassPerson               = "person"
	ObjectClassOrganizationalPerson = "organizationalPerson"
	ObjectClassInetOrgPerson        = "inetOrgPerson"
	ObjectClassGroupOfNames         = "groupOfNames"
	ObjectClassGroupOfUniqueNames   = "groupOfUniqueNames"
	ObjectClassOrganizationalUnit   = "organizationalUnit"
	ObjectClassDomain               = "domain"
	ObjectClassDcObject             = "dcObject"
)

// AttrObjectClass is the attribute that selects which structural rules
// apply to an entry.
const AttrObjectClass = "objectClass"

// Entry is one directory entry: a DN plus its attributes. Entries are
// immutable values; With methods return modified copies.
type Entry struct {
	dn    DN
	attrs Attributes
}

// NewEntry builds an entry from a parsed DN and an attribute collection.
func NewEntry(dn DN, attrs Attributes) Entry {
	return Entry{dn: dn, attrs: attrs}
}

// DN returns the entry's distinguished name.
func (e Entry) DN() DN { return e.dn }

// Attributes returns the entry's attribute collection.
func (e Entry) Attributes() Attributes { return e.attrs }

// WithDN returns a copy of the entry under a different DN.
func (e Entry) WithDN(dn DN) Entry {
	return Entry{dn: dn, attrs: e.attrs}
}

// WithAttributes returns a copy of the entry with a replaced collection.
func (e Entry) WithAttributes(attrs Attributes) Entry {
	return Entry{dn: e.dn, attrs: attrs}
}

// WithAttribute returns a copy with values appended to name.
func (e Entry) WithAttribute(name string, values ...Value) Entry {
	return Entry{dn: e.dn, attrs: e.attrs.Add(name, values...)}
}

// WithoutAttribute returns a copy with name removed.
func (e Entry) WithoutAttribute(name string) Entry {
	return Entry{dn: e.dn, attrs: e.attrs.Remove(name)}
}

// ObjectClasses returns the entry's objectClass values in stored order.
func (e Entry) ObjectClasses() []string {
	return e.attrs.GetStrings(AttrObjectClass)
}

// HasObjectClass reports whether the entry asserts the given class,
// compared case-insensitively.
func (e Entry) HasObjectClass(name string) bool {
	return e.attrs.HasValue(AttrObjectClass, name)
}

// IsPerson reports whether the entry asserts any person class.
func (e Entry) IsPerson() bool {
	return e.HasObjectClass(ObjectClassPerson) ||
		e.HasObjectClass(ObjectClassOrganizationalPerson) ||
		e.HasObjectClass(ObjectClassInetOrgPerson)
}

// IsGroup reports whether the entry asserts a group class.
func (e Entry) IsGroup() bool {
	return e.HasObjectClass(ObjectClassGroupOfNames) ||
		e.HasObjectClass(ObjectClassGroupOfUniqueNames)
}

// IsOrganizationalUnit reports whether the entry is an OU.
func (e Entry) IsOrganizationalUnit() bool {
	return e.HasObjectClass(ObjectClassOrganizationalUnit)
}

// Equal reports whether both entries have equal DNs and equal attribute
// collections.
func (e Entry) Equal(other Entry) bool {
	return e.dn.Equal(other.dn) && e.attrs.Equal(other.attrs)
}

// String returns a short description for logs and diagnostics.
func (e Entry) String() string {
	classes := e.ObjectClasses()
	if len(classes) == 0 {
		return e.dn.String()
	}
	return e.dn.String() + " (" + strings.Join(classes, ",") + ")"
}
