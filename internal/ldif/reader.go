package ldif

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Line is one unfolded logical line: an attribute name and its decoded
// value. Base64 values arrive already decoded; URL references keep the
// raw URL with Ref set.
type Line struct {
	Number int // physical line where the logical line begins
	Name   string
	Value  string
	Ref    bool
}

// Record is one blank-line-delimited block of logical lines.
type Record struct {
	Line  int // physical line where the record begins
	Lines []Line
}

// Reader tokenizes LDIF text into records. It reverses line folding
// (continuation lines start with a single space or tab and concatenate
// verbatim), decodes base64 values, skips comments, and consumes a
// leading version: line. Records are produced lazily, one Next call at
// a time, so large documents never need to be held in memory whole.
type Reader struct {
	r             *bufio.Reader
	line          int     // physical line number of the last line read
	pending       *string // one-line pushback
	eof           bool
	sawContent    bool // version: is only recognized before any record
	sawVersion    bool
	maxRecordSize int
	warnings      []Warning
}

// NewReader returns a Reader over r. Records are unlimited in size until
// SetMaxRecordSize is called.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// SetMaxRecordSize caps the byte size of a single record; a record
// exceeding the cap fails with ErrRecordTooLarge. Zero means no limit.
func (rd *Reader) SetMaxRecordSize(n int) {
	rd.maxRecordSize = n
}

// Warnings returns the non-fatal diagnostics collected so far.
func (rd *Reader) Warnings() []Warning {
	return rd.warnings
}

// SawVersion reports whether the input opened with a version: line.
func (rd *Reader) SawVersion() bool {
	return rd.sawVersion
}

// Next returns the next record, or io.EOF when the input is exhausted.
// A tokenize failure abandons the current record and resynchronizes at
// the next blank line, so the caller can keep iterating after an error.
func (rd *Reader) Next() (*Record, error) {
	first, firstNum, err := rd.firstContentLine()
	if err != nil {
		return nil, err
	}

	wasFirst := !rd.sawContent
	rd.sawContent = true

	if first[0] == ' ' || first[0] == '\t' {
		rd.resync()
		return nil, &MalformedLineError{
			Line:   firstNum,
			Text:   first,
			Reason: "continuation line with nothing to continue",
		}
	}

	rec, err := rd.readRecord(first, firstNum)
	if err != nil {
		return nil, err
	}

	if wasFirst && len(rec.Lines) > 0 && !rec.Lines[0].Ref && strings.EqualFold(rec.Lines[0].Name, "version") {
		if v := strings.TrimSpace(rec.Lines[0].Value); v != "1" {
			rd.warn(rec.Lines[0].Number, fmt.Sprintf("unsupported LDIF version %q, parsing as version 1", v))
		}
		rd.sawVersion = true
		rec.Lines = rec.Lines[1:]
		if len(rec.Lines) == 0 {
			// The version line sat in its own block.
			return rd.Next()
		}
		rec.Line = rec.Lines[0].Number
	}

	return rec, nil
}

// firstContentLine skips blank lines and comments between records and
// returns the first line of the next record.
func (rd *Reader) firstContentLine() (string, int, error) {
	for {
		s, err := rd.readLine()
		if err != nil {
			return "", 0, err
		}
		if s == "" {
			continue
		}
		if s[0] == '#' {
			rd.skipFolded()
			continue
		}
		return s, rd.line, nil
	}
}

// readRecord assembles logical lines until a blank line or EOF. first is
// the record's opening physical line, already read.
func (rd *Reader) readRecord(first string, firstNum int) (*Record, error) {
	rec := &Record{Line: firstNum}
	cur := first
	curNum := firstNum
	haveCur := true
	inComment := false
	size := len(first)

	flush := func() error {
		if !haveCur {
			return nil
		}
		line, err := parseLogical(cur, curNum)
		if err != nil {
			return err
		}
		rec.Lines = append(rec.Lines, line)
		haveCur = false
		return nil
	}

	for {
		s, err := rd.readLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if s == "" {
			break
		}

		size += len(s)
		if rd.maxRecordSize > 0 && size > rd.maxRecordSize {
			rd.resync()
			return nil, fmt.Errorf("line %d: %w (limit %d bytes)", firstNum, ErrRecordTooLarge, rd.maxRecordSize)
		}

		switch {
		case s[0] == ' ' || s[0] == '\t':
			// Continuation: strip the single marker byte, concatenate
			// the rest verbatim. Folded comments are dropped whole.
			if inComment {
				continue
			}
			cur += s[1:]
		case s[0] == '#':
			if err := flush(); err != nil {
				rd.resync()
				return nil, err
			}
			inComment = true
		default:
			if err := flush(); err != nil {
				rd.resync()
				return nil, err
			}
			inComment = false
			cur = s
			curNum = rd.line
			haveCur = true
		}
	}

	// No resync here: the record boundary was already consumed when the
	// loop ended, so a failing final flush leaves the reader positioned
	// at the next record.
	if err := flush(); err != nil {
		return nil, err
	}
	return rec, nil
}

// parseLogical splits an unfolded line into name and value. The three
// value forms are "name: value", "name:: base64" and "name:< url"; the
// spaces after the separator are filler and stripped. A line of exactly
// "-" is the modify-block terminator and becomes a Line named "-".
func parseLogical(s string, num int) (Line, error) {
	if s == "-" {
		return Line{Number: num, Name: "-"}, nil
	}

	idx := strings.IndexByte(s, ':')
	if idx <= 0 {
		reason := ""
		if idx == 0 {
			reason = "empty attribute name"
		}
		return Line{}, &MalformedLineError{Line: num, Text: s, Reason: reason}
	}

	name := s[:idx]
	rest := s[idx+1:]

	switch {
	case strings.HasPrefix(rest, ":"):
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(rest[1:]))
		if err != nil {
			return Line{}, &EncodingError{Line: num, Name: name, Err: err}
		}
		return Line{Number: num, Name: name, Value: string(decoded)}, nil
	case strings.HasPrefix(rest, "<"):
		return Line{Number: num, Name: name, Value: strings.TrimLeft(rest[1:], " "), Ref: true}, nil
	default:
		return Line{Number: num, Name: name, Value: strings.TrimLeft(rest, " ")}, nil
	}
}

// readLine returns the next physical line without its terminator. CRLF
// is normalized to LF. A final line without a terminator is returned
// before io.EOF.
func (rd *Reader) readLine() (string, error) {
	if rd.pending != nil {
		s := *rd.pending
		rd.pending = nil
		return s, nil
	}
	if rd.eof {
		return "", io.EOF
	}

	s, err := rd.r.ReadString('\n')
	if err == io.EOF {
		rd.eof = true
		if s == "" {
			return "", io.EOF
		}
	} else if err != nil {
		// Latch so the next call reports EOF instead of rereading a
		// broken stream forever.
		rd.eof = true
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	rd.line++
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, nil
}

// unread pushes the last line returned by readLine back for the next
// call. At most one line can be pending.
func (rd *Reader) unread(s string) {
	rd.pending = &s
}

// skipFolded consumes the continuation lines of the line just read.
func (rd *Reader) skipFolded() {
	for {
		s, err := rd.readLine()
		if err != nil {
			return
		}
		if s != "" && (s[0] == ' ' || s[0] == '\t') {
			continue
		}
		rd.unread(s)
		return
	}
}

// resync consumes input until the next blank line so iteration can
// continue with the following record after a failure.
func (rd *Reader) resync() {
	for {
		s, err := rd.readLine()
		if err != nil || s == "" {
			return
		}
	}
}

func (rd *Reader) warn(line int, msg string) {
	rd.warnings = append(rd.warnings, Warning{Line: line, Message: msg})
}
