package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDN(t *testing.T, s string) DN {
	t.Helper()
	dn, err := ParseDN(s)
	require.NoError(t, err)
	return dn
}

func TestParseDN(t *testing.T) {
	dn := mustDN(t, "cn=admin,ou=users,dc=example,dc=com")

	assert.Equal(t, "cn=admin,ou=users,dc=example,dc=com", dn.String())
	assert.Equal(t, 4, dn.Depth())
	assert.Equal(t, "cn=admin", dn.RDN().String())
	assert.Equal(t, "admin", dn.RDN().Value())
	assert.False(t, dn.IsZero())
}

func TestParseDNPreservesInputForm(t *testing.T) {
	// String returns the trimmed input, not a normalized form.
	dn := mustDN(t, "  CN=Admin, DC=Example ")
	assert.Equal(t, "CN=Admin, DC=Example", dn.String())
	assert.Equal(t, "cn=Admin,dc=Example", dn.Canonical())
}

func TestParseDNEmpty(t *testing.T) {
	_, err := ParseDN("")
	assert.ErrorIs(t, err, ErrEmptyDN)

	_, err = ParseDN("   ")
	assert.ErrorIs(t, err, ErrEmptyDN)
}

func TestParseDNInvalid(t *testing.T) {
	invalid := []string{
		"cn",             // no separator
		"=value,dc=com",  // empty attribute type
		"cn=a,,dc=com",   // empty component
		"cn=a,=b,dc=com", // empty type in middle component
	}
	for _, s := range invalid {
		_, err := ParseDN(s)
		assert.Error(t, err, "expected %q to be rejected", s)
	}
}

func TestParseDNEscapedValue(t *testing.T) {
	dn := mustDN(t, `cn=Doe\, John,dc=example`)

	assert.Equal(t, 2, dn.Depth())
	assert.Equal(t, "Doe, John", dn.RDN().Value())
	// Reconstruction re-escapes the separator.
	assert.Equal(t, `cn=Doe\, John`, dn.RDN().String())
}

func TestParseDNMultiValuedRDN(t *testing.T) {
	dn := mustDN(t, "cn=John+sn=Doe,dc=example")

	assert.Equal(t, 2, dn.Depth())
	assert.Equal(t, "cn=John+sn=Doe", dn.RDN().String())
	assert.Equal(t, "John", dn.RDN().Value())
}

func TestDNEqual(t *testing.T) {
	a := mustDN(t, "cn=Admin,dc=Example,dc=Com")
	b := mustDN(t, "CN=admin, DC=example, DC=com")
	c := mustDN(t, "cn=other,dc=example,dc=com")

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))

	// Different depth never compares equal.
	d := mustDN(t, "dc=example,dc=com")
	assert.False(t, a.Equal(d))
}

func TestDNHierarchy(t *testing.T) {
	dn := mustDN(t, "cn=a,ou=b,dc=c")

	assert.Equal(t, 3, dn.Depth())

	parent, ok := dn.Parent()
	require.True(t, ok)
	assert.Equal(t, "ou=b,dc=c", parent.String())

	assert.True(t, dn.IsChildOf(mustDN(t, "ou=b,dc=c")))
	assert.False(t, dn.IsChildOf(mustDN(t, "dc=c")))
	assert.True(t, mustDN(t, "dc=c").AncestorOf(dn))
}

func TestDNParentOfRoot(t *testing.T) {
	dn := mustDN(t, "dc=com")
	_, ok := dn.Parent()
	assert.False(t, ok)
}

func TestDNAncestor(t *testing.T) {
	dn := mustDN(t, "cn=a,ou=b,dc=c,dc=d")

	anc, ok := dn.Ancestor(2)
	require.True(t, ok)
	assert.Equal(t, "dc=c,dc=d", anc.String())

	_, ok = dn.Ancestor(0)
	assert.False(t, ok)
	_, ok = dn.Ancestor(4)
	assert.False(t, ok)
}

func TestDNAncestorOf(t *testing.T) {
	base := mustDN(t, "dc=example,dc=com")
	child := mustDN(t, "ou=users,dc=example,dc=com")
	grandchild := mustDN(t, "cn=admin,ou=users,dc=example,dc=com")

	assert.True(t, base.AncestorOf(child))
	assert.True(t, base.AncestorOf(grandchild))
	assert.False(t, child.AncestorOf(base))

	// A DN is not its own ancestor.
	assert.False(t, base.AncestorOf(base))

	// Suffix match is component-wise, not textual.
	other := mustDN(t, "dc=notexample,dc=com")
	assert.False(t, base.AncestorOf(other))
}

func TestDNAncestorOfCaseInsensitive(t *testing.T) {
	base := mustDN(t, "DC=Example,DC=Com")
	child := mustDN(t, "ou=users,dc=example,dc=com")
	assert.True(t, base.AncestorOf(child))
}

func TestDNCanonical(t *testing.T) {
	dn := mustDN(t, "CN=Doe\\, John,OU=Users,DC=Example")
	assert.Equal(t, `cn=Doe\, John,ou=Users,dc=Example`, dn.Canonical())
}

func TestDNZeroValue(t *testing.T) {
	var dn DN
	assert.True(t, dn.IsZero())
	assert.Equal(t, 0, dn.Depth())
	assert.Equal(t, "", dn.String())
}
