package processor

import (
	"fmt"

	"github.com/ldifkit/ldifkit/internal/models"
	"github.com/ldifkit/ldifkit/pkg/crypto"
)

const attrUserPassword = "userPassword"

// HashPasswords returns a Transform replacing plaintext userPassword
// values with argon2id hashes, so an export never leaves with recoverable
// credentials. Values already carrying an RFC 3112 {scheme} prefix and
// URL references pass through untouched.
func HashPasswords(hasher *crypto.PasswordHasher) Transform {
	return func(e models.Entry) (models.Entry, error) {
		vals, ok := e.Attributes().Get(attrUserPassword)
		if !ok {
			return e, nil
		}

		changed := false
		out := make([]models.Value, len(vals))
		for i, v := range vals {
			if v.IsRef() || crypto.HasScheme(v.String()) {
				out[i] = v
				continue
			}
			hashed, err := hasher.Hash(v.String())
			if err != nil {
				return models.Entry{}, fmt.Errorf("failed to hash userPassword: %w", err)
			}
			out[i] = models.NewValue(hashed)
			changed = true
		}
		if !changed {
			return e, nil
		}
		return e.WithAttributes(e.Attributes().Set(attrUserPassword, out...)), nil
	}
}

// RedactPasswords returns a Transform dropping the userPassword
// attribute entirely, for exports where even hashes must not travel.
func RedactPasswords() Transform {
	return func(e models.Entry) (models.Entry, error) {
		if !e.Attributes().Has(attrUserPassword) {
			return e, nil
		}
		return e.WithoutAttribute(attrUserPassword), nil
	}
}
