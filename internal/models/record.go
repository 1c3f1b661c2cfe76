package models

// ChangeType identifies an LDIF change record variant. ModDN and ModRDN
// are synonyms in the format; the spelling found in the input is kept so
// it survives a rewrite.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeDelete ChangeType = "delete"
	ChangeModify ChangeType = "modify"
	ChangeModDN  ChangeType = "moddn"
	ChangeModRDN ChangeType = "modrdn"
)

// IsRename reports whether the change type is one of the two rename
// spellings.
func (t ChangeType) IsRename() bool {
	return t == ChangeModDN || t == ChangeModRDN
}

// ModOp is the operation of one modify sub-block.
type ModOp string

const (
	ModAdd     ModOp = "add"
	ModDelete  ModOp = "delete"
	ModReplace ModOp = "replace"
)

// Modification is one {operation, attribute, values} triple of a modify
// record. The triples of a record form an ordered sequence, not a set.
type Modification struct {
	Op     ModOp
	Name   string
	Values []Value
}

// Record is either an Entry or a ChangeRecord. The set of variants is
// closed: writers and validators switch over the two concrete types.
type Record interface {
	DN() DN
	record()
}

func (Entry) record()        {}
func (ChangeRecord) record() {}

// ChangeRecord is a directory modification: a DN, a change type, and the
// type-specific payload. Like Entry it is an immutable value.
type ChangeRecord struct {
	dn           DN
	changeType   ChangeType
	attrs        Attributes     // add
	mods         []Modification // modify
	newRDN       string         // moddn/modrdn
	deleteOldRDN bool
	newSuperior  DN
	hasSuperior  bool
}

// NewAddRecord builds a changetype: add record carrying a full attribute
// set for the new entry.
func NewAddRecord(dn DN, attrs Attributes) ChangeRecord {
	return ChangeRecord{dn: dn, changeType: ChangeAdd, attrs: attrs}
}

// NewDeleteRecord builds a changetype: delete record.
func NewDeleteRecord(dn DN) ChangeRecord {
	return ChangeRecord{dn: dn, changeType: ChangeDelete}
}

// NewModifyRecord builds a changetype: modify record. The modification
// order is preserved exactly.
func NewModifyRecord(dn DN, mods []Modification) ChangeRecord {
	cp := make([]Modification, len(mods))
	copy(cp, mods)
	return ChangeRecord{dn: dn, changeType: ChangeModify, mods: cp}
}

// NewRenameRecord builds a moddn/modrdn record. typ selects the spelling;
// anything other than the two rename spellings is coerced to moddn.
// newSuperior may be the zero DN when the record does not relocate the
// entry.
func NewRenameRecord(typ ChangeType, dn DN, newRDN string, deleteOldRDN bool, newSuperior DN) ChangeRecord {
	if !typ.IsRename() {
		typ = ChangeModDN
	}
	return ChangeRecord{
		dn:           dn,
		changeType:   typ,
		newRDN:       newRDN,
		deleteOldRDN: deleteOldRDN,
		newSuperior:  newSuperior,
		hasSuperior:  !newSuperior.IsZero(),
	}
}

// DN returns the target of the change.
func (c ChangeRecord) DN() DN { return c.dn }

// Type returns the change type as spelled in the source.
func (c ChangeRecord) Type() ChangeType { return c.changeType }

// Attributes returns the attribute set of an add record.
func (c ChangeRecord) Attributes() Attributes { return c.attrs }

// Modifications returns the ordered modify triples.
func (c ChangeRecord) Modifications() []Modification {
	cp := make([]Modification, len(c.mods))
	copy(cp, c.mods)
	return cp
}

// NewRDN returns the replacement RDN of a rename record.
func (c ChangeRecord) NewRDN() string { return c.newRDN }

// DeleteOldRDN reports whether a rename drops the old RDN attribute.
func (c ChangeRecord) DeleteOldRDN() bool { return c.deleteOldRDN }

// NewSuperior returns the new parent DN of a rename record, if one was
// given.
func (c ChangeRecord) NewSuperior() (DN, bool) {
	return c.newSuperior, c.hasSuperior
}
