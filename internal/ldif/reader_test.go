package ldif

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, rd *Reader) []*Record {
	t.Helper()
	var out []*Record
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestReaderSingleRecord(t *testing.T) {
	rd := NewReader(strings.NewReader("dn: cn=t,dc=x\ncn: t\nsn: t\n"))
	recs := readAll(t, rd)

	require.Len(t, recs, 1)
	require.Len(t, recs[0].Lines, 3)
	assert.Equal(t, 1, recs[0].Line)
	assert.Equal(t, "dn", recs[0].Lines[0].Name)
	assert.Equal(t, "cn=t,dc=x", recs[0].Lines[0].Value)
	assert.Equal(t, "sn", recs[0].Lines[2].Name)
	assert.Equal(t, 3, recs[0].Lines[2].Number)
}

func TestReaderRecordSeparation(t *testing.T) {
	input := "dn: cn=a,dc=x\ncn: a\n\n\ndn: cn=b,dc=x\ncn: b\n"
	recs := readAll(t, NewReader(strings.NewReader(input)))

	require.Len(t, recs, 2)
	assert.Equal(t, "cn=a,dc=x", recs[0].Lines[0].Value)
	assert.Equal(t, "cn=b,dc=x", recs[1].Lines[0].Value)
	assert.Equal(t, 5, recs[1].Line)
}

func TestReaderUnfoldsContinuations(t *testing.T) {
	// The continuation marker is stripped, the remainder concatenated
	// verbatim, for both space and tab markers.
	input := "dn: cn=t,dc=x\ndescription: first part\n  and second\n\tand third\n"
	recs := readAll(t, NewReader(strings.NewReader(input)))

	require.Len(t, recs, 1)
	require.Len(t, recs[0].Lines, 2)
	assert.Equal(t, "first part and secondand third", recs[0].Lines[1].Value)
}

func TestReaderDecodesBase64(t *testing.T) {
	input := "dn: cn=t,dc=x\ncn:: dGVzdA==\n"
	recs := readAll(t, NewReader(strings.NewReader(input)))

	require.Len(t, recs, 1)
	assert.Equal(t, "test", recs[0].Lines[1].Value)
	assert.False(t, recs[0].Lines[1].Ref)
}

func TestReaderBase64AcrossFold(t *testing.T) {
	input := "dn: cn=t,dc=x\ncn:: dGVz\n dA==\n"
	recs := readAll(t, NewReader(strings.NewReader(input)))

	require.Len(t, recs, 1)
	assert.Equal(t, "test", recs[0].Lines[1].Value)
}

func TestReaderBadBase64(t *testing.T) {
	rd := NewReader(strings.NewReader("dn: cn=t,dc=x\ncn:: !!!\n"))
	_, err := rd.Next()

	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, 2, encErr.Line)
	assert.Equal(t, "cn", encErr.Name)
}

func TestReaderURLReference(t *testing.T) {
	input := "dn: cn=t,dc=x\njpegPhoto:< file:///tmp/photo.jpg\n"
	recs := readAll(t, NewReader(strings.NewReader(input)))

	require.Len(t, recs, 1)
	line := recs[0].Lines[1]
	assert.True(t, line.Ref)
	assert.Equal(t, "file:///tmp/photo.jpg", line.Value)
}

func TestReaderSkipsComments(t *testing.T) {
	input := "# header comment\n# folded comment\n  continues here\ndn: cn=t,dc=x\n# inner comment\ncn: t\n"
	recs := readAll(t, NewReader(strings.NewReader(input)))

	require.Len(t, recs, 1)
	require.Len(t, recs[0].Lines, 2)
	assert.Equal(t, "dn", recs[0].Lines[0].Name)
	assert.Equal(t, "cn", recs[0].Lines[1].Name)
}

func TestReaderNormalizesCRLF(t *testing.T) {
	input := "dn: cn=t,dc=x\r\ncn: t\r\n\r\ndn: cn=u,dc=x\r\ncn: u\r\n"
	recs := readAll(t, NewReader(strings.NewReader(input)))

	require.Len(t, recs, 2)
	assert.Equal(t, "cn=t,dc=x", recs[0].Lines[0].Value)
	assert.Equal(t, "t", recs[0].Lines[1].Value)
}

func TestReaderStripsValueFiller(t *testing.T) {
	recs := readAll(t, NewReader(strings.NewReader("dn: cn=t,dc=x\ncn:    padded\n")))
	require.Len(t, recs, 1)
	assert.Equal(t, "padded", recs[0].Lines[1].Value)
}

func TestReaderEmptyValue(t *testing.T) {
	recs := readAll(t, NewReader(strings.NewReader("dn: cn=t,dc=x\ndescription:\nseeAlso: \n")))
	require.Len(t, recs, 1)
	assert.Equal(t, "", recs[0].Lines[1].Value)
	assert.Equal(t, "", recs[0].Lines[2].Value)
}

func TestReaderVersionLine(t *testing.T) {
	input := "version: 1\ndn: cn=t,dc=x\ncn: t\n"
	rd := NewReader(strings.NewReader(input))
	recs := readAll(t, rd)

	require.Len(t, recs, 1)
	assert.Equal(t, "dn", recs[0].Lines[0].Name)
	assert.Empty(t, rd.Warnings())
}

func TestReaderVersionOwnBlock(t *testing.T) {
	input := "version: 1\n\ndn: cn=t,dc=x\ncn: t\n"
	recs := readAll(t, NewReader(strings.NewReader(input)))

	require.Len(t, recs, 1)
	assert.Equal(t, "dn", recs[0].Lines[0].Name)
}

func TestReaderVersionWarning(t *testing.T) {
	rd := NewReader(strings.NewReader("version: 2\ndn: cn=t,dc=x\ncn: t\n"))
	recs := readAll(t, rd)

	require.Len(t, recs, 1)
	require.Len(t, rd.Warnings(), 1)
	assert.Contains(t, rd.Warnings()[0].Message, `version "2"`)
}

func TestReaderVersionOnlyAtStart(t *testing.T) {
	// A version line inside a later record is an ordinary attribute.
	input := "dn: cn=t,dc=x\ncn: t\n\ndn: cn=u,dc=x\nversion: 1\n"
	recs := readAll(t, NewReader(strings.NewReader(input)))

	require.Len(t, recs, 2)
	require.Len(t, recs[1].Lines, 2)
	assert.Equal(t, "version", recs[1].Lines[1].Name)
}

func TestReaderMissingColon(t *testing.T) {
	rd := NewReader(strings.NewReader("dn: cn=t,dc=x\nthis line has no colon\n"))
	_, err := rd.Next()

	var mlErr *MalformedLineError
	require.ErrorAs(t, err, &mlErr)
	assert.Equal(t, 2, mlErr.Line)
}

func TestReaderEmptyAttributeName(t *testing.T) {
	rd := NewReader(strings.NewReader("dn: cn=t,dc=x\n: value\n"))
	_, err := rd.Next()

	var mlErr *MalformedLineError
	require.ErrorAs(t, err, &mlErr)
	assert.Contains(t, mlErr.Error(), "empty attribute name")
}

func TestReaderDashLine(t *testing.T) {
	input := "dn: cn=t,dc=x\nchangetype: modify\nadd: mail\nmail: a@x.com\n-\n"
	recs := readAll(t, NewReader(strings.NewReader(input)))

	require.Len(t, recs, 1)
	last := recs[0].Lines[len(recs[0].Lines)-1]
	assert.Equal(t, "-", last.Name)
	assert.Equal(t, "", last.Value)
}

func TestReaderContinuationAtStart(t *testing.T) {
	rd := NewReader(strings.NewReader(" dangling continuation\n\ndn: cn=t,dc=x\ncn: t\n"))

	_, err := rd.Next()
	var mlErr *MalformedLineError
	require.ErrorAs(t, err, &mlErr)

	// The reader resynchronizes at the blank line.
	rec, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "cn=t,dc=x", rec.Lines[0].Value)
}

func TestReaderResyncAfterError(t *testing.T) {
	input := "dn: cn=a,dc=x\nbroken line\nmore: junk\n\ndn: cn=b,dc=x\ncn: b\n"
	rd := NewReader(strings.NewReader(input))

	_, err := rd.Next()
	require.Error(t, err)

	rec, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "cn=b,dc=x", rec.Lines[0].Value)

	_, err = rd.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderMaxRecordSize(t *testing.T) {
	rd := NewReader(strings.NewReader("dn: cn=t,dc=x\ndescription: " + strings.Repeat("x", 100) + "\n"))
	rd.SetMaxRecordSize(64)

	_, err := rd.Next()
	require.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestReaderNoTrailingNewline(t *testing.T) {
	recs := readAll(t, NewReader(strings.NewReader("dn: cn=t,dc=x\ncn: t")))
	require.Len(t, recs, 1)
	assert.Equal(t, "t", recs[0].Lines[1].Value)
}

func TestReaderEmptyInput(t *testing.T) {
	_, err := NewReader(strings.NewReader("")).Next()
	assert.Equal(t, io.EOF, err)

	_, err = NewReader(strings.NewReader("\n\n# only comments\n\n")).Next()
	assert.Equal(t, io.EOF, err)
}
