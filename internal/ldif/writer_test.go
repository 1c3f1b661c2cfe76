package ldif

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldifkit/ldifkit/internal/models"
)

func testEntry(t *testing.T) models.Entry {
	t.Helper()
	dn, err := models.ParseDN("cn=t,dc=x")
	require.NoError(t, err)
	attrs := models.NewAttributes().
		AddStrings("cn", "t").
		AddStrings("objectClass", "person").
		AddStrings("sn", "t")
	return models.NewEntry(dn, attrs)
}

func TestWriterEntry(t *testing.T) {
	out, err := Marshal(testEntry(t))
	require.NoError(t, err)

	want := "dn: cn=t,dc=x\ncn: t\nobjectClass: person\nsn: t\n\n"
	assert.Equal(t, want, out)
}

func TestWriterValueOrder(t *testing.T) {
	dn, _ := models.ParseDN("cn=t,dc=x")
	entry := models.NewEntry(dn, models.NewAttributes().
		AddStrings("mail", "a@x.com", "b@x.com"))

	out, err := Marshal(entry)
	require.NoError(t, err)
	assert.Equal(t, "dn: cn=t,dc=x\nmail: a@x.com\nmail: b@x.com\n\n", out)
}

func TestWriterFoldingBoundary(t *testing.T) {
	dn, _ := models.ParseDN("cn=t,dc=x")

	// "description: " is 13 bytes, so 63 value bytes make the line
	// exactly 76 and it must not fold.
	exact := models.NewEntry(dn, models.NewAttributes().
		AddStrings("description", strings.Repeat("a", 63)))
	out, err := Marshal(exact)
	require.NoError(t, err)
	assert.Zero(t, strings.Count(out, "\n "))

	// One more byte folds exactly once, leaving a single byte on the
	// continuation line.
	over := models.NewEntry(dn, models.NewAttributes().
		AddStrings("description", strings.Repeat("a", 64)))
	out, err = Marshal(over)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n "))
	assert.Contains(t, out, "description: "+strings.Repeat("a", 63)+"\n a\n")
}

func TestWriterCustomWidth(t *testing.T) {
	dn, _ := models.ParseDN("cn=t,dc=x")
	entry := models.NewEntry(dn, models.NewAttributes().
		AddStrings("cn", "abcdefghijklmnop"))

	var sb strings.Builder
	w := NewWriter(&sb)
	w.SetWrapWidth(10)
	require.NoError(t, w.WriteRecord(entry))

	assert.Equal(t, "dn: cn=t,d\n c=x\ncn: abcdef\n ghijklmno\n p\n\n", sb.String())

	// Every physical line observes the width.
	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		assert.LessOrEqual(t, len(line), 10)
	}

	// Unfolding restores the original values.
	p := NewParser(strings.NewReader(sb.String()))
	rec, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"abcdefghijklmnop"}, rec.(models.Entry).Attributes().GetStrings("cn"))
}

func TestWriterFoldingDisabled(t *testing.T) {
	dn, _ := models.ParseDN("cn=t,dc=x")
	long := strings.Repeat("x", 200)
	entry := models.NewEntry(dn, models.NewAttributes().AddStrings("description", long))

	var sb strings.Builder
	w := NewWriter(&sb)
	w.SetWrapWidth(-1)
	require.NoError(t, w.WriteRecord(entry))

	assert.Contains(t, sb.String(), "description: "+long+"\n")
	assert.Zero(t, strings.Count(sb.String(), "\n "))
}

func TestWriterBase64Necessity(t *testing.T) {
	needs := []string{
		" leading space",
		":leading colon",
		"<leading angle",
		"trailing space ",
		"embedded\x07bell",
		"non-ascii café",
	}
	for _, v := range needs {
		dn, _ := models.ParseDN("cn=t,dc=x")
		entry := models.NewEntry(dn, models.NewAttributes().AddStrings("description", v))
		out, err := Marshal(entry)
		require.NoError(t, err)

		enc := base64.StdEncoding.EncodeToString([]byte(v))
		assert.Contains(t, out, "description:: "+enc, "value %q must be base64", v)
	}

	// A plain printable value, internal spaces included, stays plain.
	dn, _ := models.ParseDN("cn=t,dc=x")
	entry := models.NewEntry(dn, models.NewAttributes().AddStrings("description", "plain old value"))
	out, err := Marshal(entry)
	require.NoError(t, err)
	assert.Contains(t, out, "description: plain old value\n")
	assert.NotContains(t, out, "::")
}

func TestWriterEmptyValue(t *testing.T) {
	dn, _ := models.ParseDN("cn=t,dc=x")
	entry := models.NewEntry(dn, models.NewAttributes().AddStrings("description", ""))

	out, err := Marshal(entry)
	require.NoError(t, err)
	assert.Contains(t, out, "description: \n")
}

func TestWriterBase64DN(t *testing.T) {
	dn, err := models.ParseDN("cn=Jürgen,dc=x")
	require.NoError(t, err)
	entry := models.NewEntry(dn, models.NewAttributes().AddStrings("cn", "Jürgen"))

	out, err := Marshal(entry)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "dn:: "), "non-ascii DN must be base64: %q", out)

	// And it survives the round trip.
	p := NewParser(strings.NewReader(out))
	rec, err := p.Next()
	require.NoError(t, err)
	assert.True(t, rec.DN().Equal(dn))
}

func TestWriterRefValue(t *testing.T) {
	dn, _ := models.ParseDN("cn=t,dc=x")
	entry := models.NewEntry(dn, models.NewAttributes().
		Add("jpegPhoto", models.NewRefValue("file:///tmp/p.jpg")))

	out, err := Marshal(entry)
	require.NoError(t, err)
	assert.Contains(t, out, "jpegPhoto:< file:///tmp/p.jpg\n")
}

func TestWriterUnencodableRef(t *testing.T) {
	dn, _ := models.ParseDN("cn=t,dc=x")
	entry := models.NewEntry(dn, models.NewAttributes().
		Add("jpegPhoto", models.NewRefValue("file:///bad\nurl")))

	_, err := Marshal(entry)
	var ueErr *UnencodableValueError
	require.ErrorAs(t, err, &ueErr)
	assert.Equal(t, "jpegPhoto", ueErr.Name)
}

func TestWriterChangeDelete(t *testing.T) {
	dn, _ := models.ParseDN("cn=t,dc=x")
	out, err := Marshal(models.NewDeleteRecord(dn))
	require.NoError(t, err)
	assert.Equal(t, "dn: cn=t,dc=x\nchangetype: delete\n\n", out)
}

func TestWriterChangeAdd(t *testing.T) {
	dn, _ := models.ParseDN("cn=t,dc=x")
	attrs := models.NewAttributes().
		AddStrings("objectClass", "person").
		AddStrings("cn", "t").
		AddStrings("sn", "t")
	out, err := Marshal(models.NewAddRecord(dn, attrs))
	require.NoError(t, err)

	want := "dn: cn=t,dc=x\nchangetype: add\nobjectClass: person\ncn: t\nsn: t\n\n"
	assert.Equal(t, want, out)
}

func TestWriterChangeModify(t *testing.T) {
	dn, _ := models.ParseDN("cn=t,dc=x")
	rec := models.NewModifyRecord(dn, []models.Modification{
		{Op: models.ModAdd, Name: "mail", Values: []models.Value{models.NewValue("a@x.com")}},
		{Op: models.ModDelete, Name: "description"},
		{Op: models.ModReplace, Name: "sn", Values: []models.Value{models.NewValue("New")}},
	})

	out, err := Marshal(rec)
	require.NoError(t, err)

	want := strings.Join([]string{
		"dn: cn=t,dc=x",
		"changetype: modify",
		"add: mail",
		"mail: a@x.com",
		"-",
		"delete: description",
		"-",
		"replace: sn",
		"sn: New",
		"-",
	}, "\n") + "\n\n"
	assert.Equal(t, want, out)
}

func TestWriterChangeModDN(t *testing.T) {
	dn, _ := models.ParseDN("cn=t,ou=a,dc=x")
	sup, _ := models.ParseDN("ou=b,dc=x")
	rec := models.NewRenameRecord(models.ChangeModDN, dn, "cn=renamed", true, sup)

	out, err := Marshal(rec)
	require.NoError(t, err)

	want := strings.Join([]string{
		"dn: cn=t,ou=a,dc=x",
		"changetype: moddn",
		"newrdn: cn=renamed",
		"deleteoldrdn: 1",
		"newsuperior: ou=b,dc=x",
	}, "\n") + "\n\n"
	assert.Equal(t, want, out)
}

func TestWriterModRDNSpellingPreserved(t *testing.T) {
	dn, _ := models.ParseDN("cn=t,dc=x")
	rec := models.NewRenameRecord(models.ChangeModRDN, dn, "cn=u", false, models.DN{})

	out, err := Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, out, "changetype: modrdn\n")
	assert.Contains(t, out, "deleteoldrdn: 0\n")
	assert.NotContains(t, out, "newsuperior")
}

func TestWriterVersionHeader(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb)
	w.SetWriteVersion(true)
	require.NoError(t, w.WriteRecord(testEntry(t)))

	assert.True(t, strings.HasPrefix(sb.String(), "version: 1\ndn: cn=t,dc=x\n"))

	// The header parses away again.
	p := NewParser(strings.NewReader(sb.String()))
	rec, err := p.Next()
	require.NoError(t, err)
	assert.False(t, rec.(models.Entry).Attributes().Has("version"))
}

func TestWriterRoundTrip(t *testing.T) {
	dn, err := models.ParseDN("uid=jdoe,ou=people,dc=example,dc=com")
	require.NoError(t, err)
	entry := models.NewEntry(dn, models.NewAttributes().
		AddStrings("objectClass", "inetOrgPerson", "person").
		AddStrings("uid", "jdoe").
		AddStrings("cn", "John Doe").
		AddStrings("description", " starts with space").
		AddStrings("info", "multi\nline").
		AddStrings("mail", "jdoe@example.com", "john@example.com"))

	out, err := Marshal(entry)
	require.NoError(t, err)

	p := NewParser(strings.NewReader(out))
	rec, err := p.Next()
	require.NoError(t, err)

	parsed, ok := rec.(models.Entry)
	require.True(t, ok)
	assert.True(t, entry.Equal(parsed), "round trip changed the entry:\n%s", out)
}

func TestWriterIdempotence(t *testing.T) {
	entry := testEntry(t).
		WithAttribute("description", models.NewValue(strings.Repeat("long ", 40))).
		WithAttribute("info", models.NewValue("binary\x00data"))

	first, err := Marshal(entry)
	require.NoError(t, err)

	p := NewParser(strings.NewReader(first))
	rec, err := p.Next()
	require.NoError(t, err)

	second, err := Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
