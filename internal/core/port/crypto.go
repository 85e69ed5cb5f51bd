package port

import "github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"

// PasswordPolicyValidator rejects passwords that fail the strength rules for
// the account they are being set on.
type PasswordPolicyValidator interface {
	Validate(password string, ctx domain.PasswordContext) error
}

// PasswordHasher produces self-describing encoded hashes. Verify must compare
// in constant time and report a mismatch as (false, nil).
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}
