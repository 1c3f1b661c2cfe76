package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldifkit/ldifkit/pkg/config"
)

func testConfig() config.Argon2Config {
	return config.Argon2Config{
		Memory:      65536,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestNewPasswordHasher(t *testing.T) {
	ph := NewPasswordHasher(testConfig())
	assert.NotNil(t, ph)
}

func TestHash(t *testing.T) {
	ph := NewPasswordHasher(testConfig())

	hash, err := ph.Hash("mySecretPassword123")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	// Hash should carry the scheme prefix and the argon2id parameters
	assert.True(t, strings.HasPrefix(hash, SchemeArgon2))
	assert.Contains(t, hash, "$argon2id$")
	assert.Contains(t, hash, "v=19")
	assert.Contains(t, hash, "m=65536,t=3,p=2")
}

func TestHashUniqueness(t *testing.T) {
	ph := NewPasswordHasher(testConfig())

	// Same password should produce different hashes (random salt)
	hash1, err := ph.Hash("password")
	require.NoError(t, err)
	hash2, err := ph.Hash("password")
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2)
}

func TestVerify(t *testing.T) {
	ph := NewPasswordHasher(testConfig())

	password := "correctHorseBatteryStaple"
	hash, err := ph.Hash(password)
	require.NoError(t, err)

	ok, err := ph.Verify(password, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ph.Verify("wrongPassword", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyWithoutSchemePrefix(t *testing.T) {
	ph := NewPasswordHasher(testConfig())

	hash, err := ph.Hash("secret")
	require.NoError(t, err)

	bare := strings.TrimPrefix(hash, SchemeArgon2)
	ok, err := ph.Verify("secret", bare)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyInvalidFormat(t *testing.T) {
	ph := NewPasswordHasher(testConfig())

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"not a hash", "plaintext"},
		{"too few parts", "$argon2id$v=19"},
		{"wrong algorithm", "$scrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
		{"bad salt encoding", "$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := ph.Verify("password", tt.hash)
			assert.Error(t, err)
			assert.False(t, ok)
		})
	}
}

func TestProcessPasswordPlaintext(t *testing.T) {
	ph := NewPasswordHasher(testConfig())

	out, err := ph.ProcessPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, SchemeArgon2))

	ok, err := ph.Verify("hunter2", out)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProcessPasswordAlreadyHashed(t *testing.T) {
	ph := NewPasswordHasher(testConfig())

	hash, err := ph.Hash("secret")
	require.NoError(t, err)

	// A valid {ARGON2ID} value passes through untouched
	out, err := ph.ProcessPassword(hash)
	require.NoError(t, err)
	assert.Equal(t, hash, out)
}

func TestProcessPasswordUnsupportedScheme(t *testing.T) {
	ph := NewPasswordHasher(testConfig())

	tests := []string{
		"{SSHA}Y2hlY2tzdW1wbHVzc2FsdA==",
		"{MD5}CY9rzUYh03PK3k6DJie09g==",
		"{CRYPT}$6$rounds=5000$salt$hash",
	}

	for _, password := range tests {
		_, err := ph.ProcessPassword(password)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported password scheme")
	}
}

func TestProcessPasswordMalformedHash(t *testing.T) {
	ph := NewPasswordHasher(testConfig())

	tests := []string{
		"{ARGON2ID}not-a-real-hash",
		"{ARGON2ID}$argon2id$v=19",
		"{ARGON2ID}$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
	}

	for _, password := range tests {
		_, err := ph.ProcessPassword(password)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid hashed password format")
	}
}

func TestProcessPasswordCaseInsensitiveScheme(t *testing.T) {
	ph := NewPasswordHasher(testConfig())

	hash, err := ph.Hash("secret")
	require.NoError(t, err)

	lower := "{argon2id}" + strings.TrimPrefix(hash, SchemeArgon2)
	out, err := ph.ProcessPassword(lower)
	require.NoError(t, err)
	assert.Equal(t, lower, out)
}

func TestHasScheme(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"{ARGON2ID}$argon2id$...", true},
		{"{SSHA}data", true},
		{"plaintext", false},
		{"{unterminated", false},
		{"{}empty", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HasScheme(tt.value), "HasScheme(%q)", tt.value)
	}
}

func TestExtractScheme(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{"argon2id", "{ARGON2ID}data", "ARGON2ID", false},
		{"ssha", "{SSHA}data", "SSHA", false},
		{"empty scheme", "{}data", "", false},
		{"no prefix", "plaintext", "", true},
		{"unterminated", "{SSHA", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheme, err := extractScheme(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, scheme)
		})
	}
}

func BenchmarkHash(b *testing.B) {
	ph := NewPasswordHasher(testConfig())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ph.Hash("benchmarkPassword123")
	}
}

func BenchmarkVerify(b *testing.B) {
	ph := NewPasswordHasher(testConfig())
	hash, _ := ph.Hash("benchmarkPassword123")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ph.Verify("benchmarkPassword123", hash)
	}
}
