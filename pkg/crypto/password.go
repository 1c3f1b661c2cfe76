// Package crypto hashes userPassword values for export scrubbing.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/ldifkit/ldifkit/pkg/config"
)

const (
	// SchemeArgon2 is the userPassword scheme prefix this hasher emits,
	// RFC 3112 {scheme}value style.
	SchemeArgon2 = "{ARGON2ID}"

	argon2AlgorithmName = "argon2id"
	argon2Version       = 19
)

// PasswordHasher handles password hashing and verification
type PasswordHasher struct {
	cfg config.Argon2Config
}

// NewPasswordHasher creates a new password hasher
func NewPasswordHasher(cfg config.Argon2Config) *PasswordHasher {
	return &PasswordHasher{cfg: cfg}
}

// Hash hashes a password using Argon2id
// Returns hash in format: {ARGON2ID}$argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
func (ph *PasswordHasher) Hash(password string) (string, error) {
	// Generate random salt
	salt := make([]byte, ph.cfg.SaltLength)
	_, err := rand.Read(salt)
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	// Hash password using Argon2id
	hash := argon2.IDKey(
		[]byte(password),
		salt,
		ph.cfg.Iterations,
		ph.cfg.Memory,
		ph.cfg.Parallelism,
		ph.cfg.KeyLength,
	)

	// Encode salt and hash to base64
	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	hashB64 := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"%s$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		SchemeArgon2,
		argon2AlgorithmName,
		argon2Version,
		ph.cfg.Memory,
		ph.cfg.Iterations,
		ph.cfg.Parallelism,
		saltB64,
		hashB64,
	), nil
}

// Verify verifies a password against its hash. The {ARGON2ID} scheme
// prefix is optional on the stored hash.
func (ph *PasswordHasher) Verify(password, hashedPassword string) (bool, error) {
	hashedPassword = strings.TrimPrefix(hashedPassword, SchemeArgon2)

	// Parse the hash
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 6 {
		return false, fmt.Errorf("invalid hash format")
	}

	if parts[1] != argon2AlgorithmName {
		return false, fmt.Errorf("unsupported hash algorithm: %s", parts[1])
	}

	// Decode salt and hash
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	// Compute hash of provided password
	computedHash := argon2.IDKey(
		[]byte(password),
		salt,
		ph.cfg.Iterations,
		ph.cfg.Memory,
		ph.cfg.Parallelism,
		ph.cfg.KeyLength,
	)

	// Compare hashes in constant time
	return constantTimeCompare(computedHash, expectedHash), nil
}

// ProcessPassword prepares a userPassword value for storage or export:
// plaintext is hashed, a value already carrying this hasher's scheme is
// validated and passed through unchanged, any other scheme is rejected.
func (ph *PasswordHasher) ProcessPassword(password string) (string, error) {
	if !strings.HasPrefix(password, "{") {
		return ph.Hash(password)
	}

	scheme, err := extractScheme(password)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(scheme, "ARGON2ID") {
		return "", fmt.Errorf("unsupported password scheme: {%s}", scheme)
	}

	rest := password[len(scheme)+2:]
	parts := strings.Split(rest, "$")
	if len(parts) != 6 || parts[1] != argon2AlgorithmName {
		return "", fmt.Errorf("invalid hashed password format")
	}
	return password, nil
}

// HasScheme reports whether a password value carries an RFC 3112 style
// {scheme} prefix.
func HasScheme(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	return strings.IndexByte(s, '}') > 1
}

// extractScheme pulls the scheme name out of a {scheme}value password.
func extractScheme(s string) (string, error) {
	if !strings.HasPrefix(s, "{") {
		return "", fmt.Errorf("password has no scheme prefix")
	}
	end := strings.IndexByte(s, '}')
	if end == -1 {
		return "", fmt.Errorf("unterminated password scheme")
	}
	return s[1:end], nil
}

// constantTimeCompare compares two byte slices in constant time
func constantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	var result byte
	for i := range a {
		result |= a[i] ^ b[i]
	}

	return result == 0
}
