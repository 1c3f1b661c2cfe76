package ldif

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/ldifkit/ldifkit/internal/models"
)

// DefaultWrapWidth is the canonical LDIF fold column.
const DefaultWrapWidth = 76

// Writer serializes records to canonical LDIF text: dn: line first,
// attribute values in stored order, values that are unsafe in plain form
// re-encoded as base64, and every physical line folded at the wrap
// width. Each record is followed by one blank separator line.
type Writer struct {
	w            io.Writer
	width        int
	writeVersion bool
	started      bool
}

// NewWriter returns a Writer emitting to w at the default wrap width.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, width: DefaultWrapWidth}
}

// SetWrapWidth changes the fold column. Zero restores the default,
// negative disables folding entirely.
func (w *Writer) SetWrapWidth(width int) {
	if width == 0 {
		width = DefaultWrapWidth
	}
	w.width = width
}

// SetWriteVersion controls whether a version: 1 line opens the output.
// Off by default so a rewrite of version-less input stays byte-stable.
func (w *Writer) SetWriteVersion(v bool) {
	w.writeVersion = v
}

// WriteRecord serializes one record and its trailing separator line.
func (w *Writer) WriteRecord(rec models.Record) error {
	if !w.started {
		w.started = true
		if w.writeVersion {
			if err := w.writeRaw("version: 1\n"); err != nil {
				return err
			}
		}
	}

	switch r := rec.(type) {
	case models.Entry:
		return w.writeEntry(r)
	case models.ChangeRecord:
		return w.writeChange(r)
	default:
		return fmt.Errorf("unsupported record type %T", rec)
	}
}

// WriteRecords serializes records in order, stopping at the first error.
func (w *Writer) WriteRecords(records []models.Record) error {
	for _, rec := range records {
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

// Marshal renders records to one LDIF string at the default wrap width.
func Marshal(records ...models.Record) (string, error) {
	var sb strings.Builder
	w := NewWriter(&sb)
	if err := w.WriteRecords(records); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (w *Writer) writeEntry(e models.Entry) error {
	dn := e.DN().String()
	if err := w.writeValueLine("dn", models.NewValue(dn), dn); err != nil {
		return err
	}
	for _, attr := range e.Attributes().List() {
		for _, v := range attr.Values {
			if err := w.writeValueLine(attr.Name, v, dn); err != nil {
				return err
			}
		}
	}
	return w.writeRaw("\n")
}

func (w *Writer) writeChange(c models.ChangeRecord) error {
	dn := c.DN().String()
	if err := w.writeValueLine("dn", models.NewValue(dn), dn); err != nil {
		return err
	}
	if err := w.writeFolded("changetype: " + string(c.Type())); err != nil {
		return err
	}

	switch c.Type() {
	case models.ChangeAdd:
		for _, attr := range c.Attributes().List() {
			for _, v := range attr.Values {
				if err := w.writeValueLine(attr.Name, v, dn); err != nil {
					return err
				}
			}
		}

	case models.ChangeDelete:
		// Nothing follows the changetype line.

	case models.ChangeModify:
		for _, mod := range c.Modifications() {
			if err := w.writeFolded(string(mod.Op) + ": " + mod.Name); err != nil {
				return err
			}
			for _, v := range mod.Values {
				if err := w.writeValueLine(mod.Name, v, dn); err != nil {
					return err
				}
			}
			if err := w.writeRaw("-\n"); err != nil {
				return err
			}
		}

	case models.ChangeModDN, models.ChangeModRDN:
		if err := w.writeValueLine("newrdn", models.NewValue(c.NewRDN()), dn); err != nil {
			return err
		}
		old := "0"
		if c.DeleteOldRDN() {
			old = "1"
		}
		if err := w.writeFolded("deleteoldrdn: " + old); err != nil {
			return err
		}
		if sup, ok := c.NewSuperior(); ok {
			if err := w.writeValueLine("newsuperior", models.NewValue(sup.String()), dn); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown change type %q", c.Type())
	}

	return w.writeRaw("\n")
}

// writeValueLine emits one attribute line in the form the value demands:
// plain, base64 or URL reference.
func (w *Writer) writeValueLine(name string, v models.Value, dn string) error {
	if v.IsRef() {
		url := v.String()
		if url == "" || !printableASCII(url) || url[0] == ' ' {
			return &UnencodableValueError{DN: dn, Name: name}
		}
		return w.writeFolded(name + ":< " + url)
	}
	if needsBase64(v.String()) {
		return w.writeFolded(name + ":: " + base64.StdEncoding.EncodeToString(v.Bytes()))
	}
	return w.writeFolded(name + ": " + v.String())
}

// needsBase64 reports whether a value is unsafe in plain form: a byte
// outside printable ASCII anywhere, a leading space, colon or '<', or a
// trailing space. The tokenizer strips filler after the separator, so
// any of these would not survive a round trip as plain text.
func needsBase64(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case ' ', ':', '<':
		return true
	}
	if s[len(s)-1] == ' ' {
		return true
	}
	return !printableASCII(s)
}

func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E { // 0x7F DEL is not printable
			return false
		}
	}
	return true
}

// writeFolded emits one logical line, folded at the wrap width: the first
// physical line carries width bytes, continuations carry a space plus
// width-1 bytes, so unfolding concatenates back to the original.
func (w *Writer) writeFolded(line string) error {
	if w.width < 0 || len(line) <= w.width {
		return w.writeRaw(line + "\n")
	}

	if err := w.writeRaw(line[:w.width] + "\n"); err != nil {
		return err
	}
	rest := line[w.width:]
	step := w.width - 1
	if step < 1 {
		step = 1
	}
	for len(rest) > step {
		if err := w.writeRaw(" " + rest[:step] + "\n"); err != nil {
			return err
		}
		rest = rest[step:]
	}
	return w.writeRaw(" " + rest + "\n")
}

func (w *Writer) writeRaw(s string) error {
	if _, err := io.WriteString(w.w, s); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
