// Package processor orchestrates the LDIF pipeline: parse, validate,
// filter, transform, write. It is the only package that knows the full
// chain; the model, codec and schema packages stay independently usable.
//
// A Processor holds configuration only. It keeps no entry state between
// calls, so one instance can serve concurrent batches on disjoint inputs.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ldifkit/ldifkit/internal/ldif"
	"github.com/ldifkit/ldifkit/internal/models"
	"github.com/ldifkit/ldifkit/internal/schema"
	"github.com/ldifkit/ldifkit/pkg/config"
)

// ErrTooManyRecords is returned by Parse when a document yields more
// records than the configured limit.
var ErrTooManyRecords = errors.New("too many records in document")

// Processor runs the pipeline with one configuration.
type Processor struct {
	cfg      *config.Config
	failFast bool
}

// New returns a Processor bound to cfg; nil loads the environment
// configuration.
func New(cfg *config.Config) *Processor {
	if cfg == nil {
		cfg = config.Load()
	}
	return &Processor{cfg: cfg}
}

// SetFailFast makes Parse abort on the first failed record and Transform
// abort on the first failed entry, instead of collecting failures.
func (p *Processor) SetFailFast(on bool) { p.failFast = on }

// ParseResult is the outcome of parsing one document. A document with
// malformed records still produces a result: every record that parsed is
// in Records, every record that did not is one error in Failures. Only
// stream-level problems (unreadable input, record limit exceeded) abort
// the parse entirely.
type ParseResult struct {
	Records    []models.Record
	Failures   []error // *ldif.RecordError values, 1-based record indexes
	Warnings   []ldif.Warning
	SawVersion bool
}

// OK reports whether every record parsed.
func (r *ParseResult) OK() bool { return len(r.Failures) == 0 }

// Entries returns the content entries of the document, in input order.
func (r *ParseResult) Entries() []models.Entry {
	var out []models.Entry
	for _, rec := range r.Records {
		if e, ok := rec.(models.Entry); ok {
			out = append(out, e)
		}
	}
	return out
}

// Changes returns the change records of the document, in input order.
func (r *ParseResult) Changes() []models.ChangeRecord {
	var out []models.ChangeRecord
	for _, rec := range r.Records {
		if c, ok := rec.(models.ChangeRecord); ok {
			out = append(out, c)
		}
	}
	return out
}

// Parse reads one LDIF document from r. The input streams through the
// tokenizer record by record; the document is never held in memory as a
// whole. With fail-fast off (the default) malformed records are collected
// in the result and parsing continues.
func (p *Processor) Parse(r io.Reader) (*ParseResult, error) {
	rd := ldif.NewReader(r)
	if p.cfg.Limits.MaxEntrySize > 0 {
		rd.SetMaxRecordSize(p.cfg.Limits.MaxEntrySize)
	}
	parser := ldif.NewParserFrom(rd)

	res := &ParseResult{}
	count := 0
	for {
		rec, err := parser.Next()
		if err == io.EOF {
			break
		}
		count++
		if p.cfg.Limits.MaxEntries > 0 && count > p.cfg.Limits.MaxEntries {
			return nil, fmt.Errorf("%w (limit %d)", ErrTooManyRecords, p.cfg.Limits.MaxEntries)
		}
		if err != nil {
			if p.failFast {
				return nil, err
			}
			res.Failures = append(res.Failures, err)
			continue
		}
		res.Records = append(res.Records, rec)
	}

	res.Warnings = parser.Warnings()
	res.SawVersion = parser.SawVersion()
	slog.Debug("document parsed",
		"records", len(res.Records),
		"failures", len(res.Failures),
		"warnings", len(res.Warnings))
	return res, nil
}

// ParseString parses a document held in memory.
func (p *Processor) ParseString(s string) (*ParseResult, error) {
	return p.Parse(strings.NewReader(s))
}

// ParseFile parses the document at path, streaming it from disk.
func (p *Processor) ParseFile(path string) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return p.Parse(f)
}

// NewValidator returns a validator for the rule set with the processor's
// defaults applied. nil selects the built-in rule set with the configured
// strictness; fail-fast follows the processor setting.
func (p *Processor) NewValidator(rules *schema.RuleSet) *schema.Validator {
	if rules == nil {
		rules = schema.DefaultRuleSet()
		rules.Strict = p.cfg.Processing.StrictValidation
	}
	v := schema.NewValidator(rules)
	v.SetFailFast(p.failFast)
	return v
}

// Validate checks entries against the rule set, structural rules first,
// then the per-class rules, plus the duplicate-DN check across the
// collection.
func (p *Processor) Validate(entries []models.Entry, rules *schema.RuleSet) *schema.Report {
	report := p.NewValidator(rules).ValidateAll(entries)
	slog.Debug("collection validated", "summary", report.Summary())
	return report
}

// WriteTo serializes records to w with the configured wrap width.
func (p *Processor) WriteTo(w io.Writer, records []models.Record) error {
	lw := ldif.NewWriter(w)
	lw.SetWrapWidth(p.cfg.Output.WrapWidth)
	lw.SetWriteVersion(p.cfg.Output.WriteVersion)
	return lw.WriteRecords(records)
}

// Write renders records to one LDIF string.
func (p *Processor) Write(records []models.Record) (string, error) {
	var sb strings.Builder
	if err := p.WriteTo(&sb, records); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteFile writes records to path, replacing any existing file. The
// file is created owner-only: directory exports routinely carry password
// hashes.
func (p *Processor) WriteFile(path string, records []models.Record) error {
	text, err := p.Write(records)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Records converts entries to the record slice the write operations take.
func Records(entries []models.Entry) []models.Record {
	out := make([]models.Record, len(entries))
	for i, e := range entries {
		out[i] = e
	}
	return out
}

// Filter returns the entries matching pred, input order preserved. The
// input slice is never modified.
func (p *Processor) Filter(entries []models.Entry, pred func(models.Entry) bool) []models.Entry {
	out := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// FilterByClass returns the entries asserting the given objectClass,
// compared case-insensitively.
func (p *Processor) FilterByClass(entries []models.Entry, class string) []models.Entry {
	return p.Filter(entries, func(e models.Entry) bool {
		return e.HasObjectClass(class)
	})
}

// FilterPersons returns the entries asserting any person class.
func (p *Processor) FilterPersons(entries []models.Entry) []models.Entry {
	return p.Filter(entries, models.Entry.IsPerson)
}

// FilterMatch returns the entries matching an LDAP search filter
// expression such as (&(objectClass=person)(title=*Engineer*)).
func (p *Processor) FilterMatch(entries []models.Entry, expr string) ([]models.Entry, error) {
	pred, err := schema.CompileFilterString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, err)
	}
	return p.Filter(entries, pred), nil
}

// FindByDN returns the first entry whose DN equals dn under directory
// matching. A dn that does not parse falls back to a case-folded string
// comparison.
func (p *Processor) FindByDN(entries []models.Entry, dn string) (models.Entry, bool) {
	want, err := models.ParseDN(dn)
	for _, e := range entries {
		if err == nil && e.DN().Equal(want) {
			return e, true
		}
		if err != nil && strings.EqualFold(e.DN().String(), dn) {
			return e, true
		}
	}
	return models.Entry{}, false
}

// SortHierarchical returns entries ordered root-first by DN depth,
// preserving input order within a depth, so parents precede children
// when a complete tree is written or loaded.
func (p *Processor) SortHierarchical(entries []models.Entry) []models.Entry {
	out := make([]models.Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DN().Depth() < out[j].DN().Depth()
	})
	return out
}

// Transform maps one entry to a replacement entry. Implementations must
// be pure functions: a batch may run them concurrently.
type Transform func(models.Entry) (models.Entry, error)

// TransformError is one entry's transform failure inside a batch.
type TransformError struct {
	Index int // 1-based position in the batch
	DN    string
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("entry %d (%s): %v", e.Index, e.DN, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Transform applies fn to every entry and returns the transformed
// entries in input order. Entries whose transform failed are omitted
// from the output and reported in the second return as *TransformError
// values. With more than one configured worker the batch fans out over
// an indexed results slice, so output order never depends on scheduling.
// Fail-fast mode stops the batch at the first failure and returns only
// that error.
func (p *Processor) Transform(entries []models.Entry, fn Transform) ([]models.Entry, []error) {
	if len(entries) == 0 {
		return nil, nil
	}

	workers := p.cfg.Processing.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]models.Entry, len(entries))
	failures := make([]error, len(entries))

	if workers == 1 || len(entries) == 1 {
		for i := range entries {
			if err := applyTransform(fn, entries, i, results, failures); err != nil && p.failFast {
				return nil, []error{failures[i]}
			}
		}
	} else {
		g, ctx := errgroup.WithContext(context.Background())
		g.SetLimit(workers)
		for i := range entries {
			i := i
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				if err := applyTransform(fn, entries, i, results, failures); err != nil && p.failFast {
					return failures[i]
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, []error{err}
		}
	}

	out := make([]models.Entry, 0, len(entries))
	var errs []error
	for i := range entries {
		if failures[i] != nil {
			errs = append(errs, failures[i])
			continue
		}
		out = append(out, results[i])
	}
	slog.Debug("batch transformed", "entries", len(entries), "failed", len(errs), "workers", workers)
	return out, errs
}

// applyTransform runs fn on entry i, recording the outcome in the slot
// owned by that index.
func applyTransform(fn Transform, entries []models.Entry, i int, results []models.Entry, failures []error) error {
	transformed, err := fn(entries[i])
	if err != nil {
		failures[i] = &TransformError{
			Index: i + 1,
			DN:    entries[i].DN().String(),
			Err:   err,
		}
		return err
	}
	results[i] = transformed
	return nil
}
