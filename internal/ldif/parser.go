package ldif

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ldifkit/ldifkit/internal/models"
)

var errDNRef = errors.New("dn cannot be a URL reference")

// Parser assembles the Reader's records into entries and change records.
// It consumes the token stream lazily: each Next call parses exactly one
// record, so a document streams through without being fully materialized.
//
// A failed record is reported as a *RecordError carrying the 1-based
// record index; the stream stays usable, subsequent Next calls continue
// with the following record.
type Parser struct {
	reader *Reader
	index  int
}

// NewParser returns a Parser reading LDIF text from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{reader: NewReader(r)}
}

// NewParserFrom returns a Parser over an existing Reader, which keeps
// any reader configuration (size limits) in effect.
func NewParserFrom(rd *Reader) *Parser {
	return &Parser{reader: rd}
}

// Warnings returns the non-fatal diagnostics collected so far, tokenizer
// and parser level combined.
func (p *Parser) Warnings() []Warning {
	return p.reader.Warnings()
}

// SawVersion reports whether the input opened with a version: line.
func (p *Parser) SawVersion() bool {
	return p.reader.SawVersion()
}

// Next parses and returns the next record, or io.EOF at end of input.
func (p *Parser) Next() (models.Record, error) {
	rec, err := p.reader.Next()
	if err == io.EOF {
		return nil, io.EOF
	}
	p.index++
	if err != nil {
		return nil, &RecordError{Index: p.index, Err: err}
	}
	out, err := p.parseRecord(rec)
	if err != nil {
		return nil, &RecordError{Index: p.index, Err: err}
	}
	return out, nil
}

func (p *Parser) parseRecord(rec *Record) (models.Record, error) {
	if len(rec.Lines) == 0 {
		return nil, &MissingDNError{Line: rec.Line}
	}

	first := rec.Lines[0]
	if !strings.EqualFold(first.Name, "dn") {
		return nil, &MissingDNError{Line: rec.Line}
	}
	if first.Ref {
		return nil, &InvalidDNError{Line: first.Number, DN: first.Value, Err: errDNRef}
	}
	dn, err := models.ParseDN(first.Value)
	if err != nil {
		return nil, &InvalidDNError{Line: first.Number, DN: first.Value, Err: err}
	}

	rest := rec.Lines[1:]
	for _, ln := range rest {
		if strings.EqualFold(ln.Name, "dn") {
			return nil, &MalformedLineError{
				Line:   ln.Number,
				Text:   "dn: " + ln.Value,
				Reason: "duplicate dn: line",
			}
		}
	}

	// Controls may sit between dn: and changetype:. They are skipped
	// with a warning; this engine does not evaluate them.
	i := 0
	for i < len(rest) && strings.EqualFold(rest[i].Name, "control") {
		i++
	}
	if i < len(rest) && strings.EqualFold(rest[i].Name, "changetype") {
		for _, ctl := range rest[:i] {
			p.reader.warn(ctl.Number, fmt.Sprintf("control %q skipped", ctl.Value))
		}
		return p.parseChange(dn, rest[i], rest[i+1:])
	}

	return p.parseEntry(dn, rest)
}

func (p *Parser) parseEntry(dn models.DN, lines []Line) (models.Record, error) {
	for _, ln := range lines {
		if ln.Name == "-" {
			return nil, &MalformedLineError{Line: ln.Number, Text: "-", Reason: "'-' separator outside a modify record"}
		}
		if strings.EqualFold(ln.Name, "changetype") {
			return nil, &MalformedChangeRecordError{
				Line:   ln.Number,
				Reason: "changetype: line must directly follow dn:",
			}
		}
	}
	return models.NewEntry(dn, collectAttributes(lines)), nil
}

func (p *Parser) parseChange(dn models.DN, ct Line, body []Line) (models.Record, error) {
	if ct.Ref {
		return nil, &MalformedChangeRecordError{Line: ct.Number, Reason: "changetype cannot be a URL reference"}
	}

	switch typ := models.ChangeType(strings.ToLower(strings.TrimSpace(ct.Value))); typ {
	case models.ChangeAdd:
		if len(body) == 0 {
			return nil, &MalformedChangeRecordError{Line: ct.Number, Reason: "add record carries no attributes"}
		}
		for _, ln := range body {
			if ln.Name == "-" {
				return nil, &MalformedLineError{Line: ln.Number, Text: "-", Reason: "'-' separator outside a modify record"}
			}
			if strings.EqualFold(ln.Name, "changetype") {
				return nil, &MalformedChangeRecordError{Line: ln.Number, Reason: "duplicate changetype: line"}
			}
		}
		return models.NewAddRecord(dn, collectAttributes(body)), nil

	case models.ChangeDelete:
		if len(body) != 0 {
			return nil, &MalformedChangeRecordError{
				Line:   body[0].Number,
				Reason: "delete record must end after changetype:",
			}
		}
		return models.NewDeleteRecord(dn), nil

	case models.ChangeModify:
		mods, err := parseModifyBody(body)
		if err != nil {
			return nil, err
		}
		return models.NewModifyRecord(dn, mods), nil

	case models.ChangeModDN, models.ChangeModRDN:
		return parseRenameBody(typ, dn, ct, body)

	default:
		return nil, &UnknownChangeTypeError{Line: ct.Number, ChangeType: strings.TrimSpace(ct.Value)}
	}
}

// parseModifyBody walks the add:/delete:/replace: sub-blocks of a modify
// record. Each block declares an attribute, carries that attribute's
// value lines, and is closed by a "-" line; the final "-" may be omitted.
func parseModifyBody(body []Line) ([]models.Modification, error) {
	var mods []models.Modification
	i := 0
	for i < len(body) {
		op := body[i]
		if op.Name == "-" {
			return nil, &MalformedChangeRecordError{Line: op.Number, Reason: "unexpected '-' separator"}
		}
		opName := models.ModOp(strings.ToLower(op.Name))
		if opName != models.ModAdd && opName != models.ModDelete && opName != models.ModReplace {
			return nil, &MalformedChangeRecordError{
				Line:   op.Number,
				Reason: fmt.Sprintf("expected add:, delete: or replace:, got %q", op.Name),
			}
		}
		if op.Ref {
			return nil, &MalformedChangeRecordError{Line: op.Number, Reason: "modify operation cannot be a URL reference"}
		}
		target := strings.TrimSpace(op.Value)
		if target == "" {
			return nil, &MalformedChangeRecordError{Line: op.Number, Reason: "modify block missing attribute name"}
		}

		i++
		var vals []models.Value
		for i < len(body) && body[i].Name != "-" {
			ln := body[i]
			if !strings.EqualFold(ln.Name, target) {
				return nil, &MalformedChangeRecordError{
					Line:   ln.Number,
					Reason: fmt.Sprintf("value line %q inside %s block of %q", ln.Name, opName, target),
				}
			}
			vals = append(vals, lineValue(ln))
			i++
		}
		if i < len(body) {
			i++ // consume the "-"
		}

		if opName == models.ModAdd && len(vals) == 0 {
			return nil, &MalformedChangeRecordError{
				Line:   op.Number,
				Reason: fmt.Sprintf("add modification of %q carries no values", target),
			}
		}
		mods = append(mods, models.Modification{Op: opName, Name: target, Values: vals})
	}
	return mods, nil
}

// parseRenameBody handles moddn/modrdn: a required newrdn and
// deleteoldrdn, an optional newsuperior.
func parseRenameBody(typ models.ChangeType, dn models.DN, ct Line, body []Line) (models.Record, error) {
	var (
		newRDN      string
		deleteOld   bool
		newSuperior models.DN
		haveRDN     bool
		haveDelete  bool
	)

	for _, ln := range body {
		switch strings.ToLower(ln.Name) {
		case "newrdn":
			if haveRDN {
				return nil, &MalformedChangeRecordError{Line: ln.Number, Reason: "duplicate newrdn: line"}
			}
			rdn, err := models.ParseDN(ln.Value)
			if err != nil || rdn.Depth() != 1 {
				return nil, &MalformedChangeRecordError{
					Line:   ln.Number,
					Reason: fmt.Sprintf("newrdn %q is not a single RDN", ln.Value),
				}
			}
			newRDN = strings.TrimSpace(ln.Value)
			haveRDN = true
		case "deleteoldrdn":
			if haveDelete {
				return nil, &MalformedChangeRecordError{Line: ln.Number, Reason: "duplicate deleteoldrdn: line"}
			}
			switch strings.TrimSpace(ln.Value) {
			case "0":
				deleteOld = false
			case "1":
				deleteOld = true
			default:
				return nil, &MalformedChangeRecordError{
					Line:   ln.Number,
					Reason: fmt.Sprintf("deleteoldrdn must be 0 or 1, got %q", ln.Value),
				}
			}
			haveDelete = true
		case "newsuperior":
			if !newSuperior.IsZero() {
				return nil, &MalformedChangeRecordError{Line: ln.Number, Reason: "duplicate newsuperior: line"}
			}
			sup, err := models.ParseDN(ln.Value)
			if err != nil {
				return nil, &InvalidDNError{Line: ln.Number, DN: ln.Value, Err: err}
			}
			newSuperior = sup
		default:
			return nil, &MalformedChangeRecordError{
				Line:   ln.Number,
				Reason: fmt.Sprintf("unexpected line %q in %s record", ln.Name, typ),
			}
		}
	}

	if !haveRDN {
		return nil, &MalformedChangeRecordError{Line: ct.Number, Reason: "missing newrdn: line"}
	}
	if !haveDelete {
		return nil, &MalformedChangeRecordError{Line: ct.Number, Reason: "missing deleteoldrdn: line"}
	}
	return models.NewRenameRecord(typ, dn, newRDN, deleteOld, newSuperior), nil
}

// collectAttributes folds attribute lines into a collection, one pair
// per line so repeated names accumulate values in encounter order.
func collectAttributes(lines []Line) models.Attributes {
	list := make([]models.Attribute, 0, len(lines))
	for _, ln := range lines {
		list = append(list, models.Attribute{
			Name:   ln.Name,
			Values: []models.Value{lineValue(ln)},
		})
	}
	return models.AttributesFromList(list)
}

func lineValue(ln Line) models.Value {
	if ln.Ref {
		return models.NewRefValue(ln.Value)
	}
	return models.NewValue(ln.Value)
}
