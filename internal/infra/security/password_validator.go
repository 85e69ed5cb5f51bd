package security

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies a sequence of password rules.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// Validate executes all rules and returns the first encountered violation.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// MaxLengthRule caps the password size so hashing work stays bounded.
func MaxLengthRule(max int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if max > 0 && len(password) > max {
			return &PasswordValidationError{
				Code:    "max_length",
				Message: fmt.Sprintf("password must be at most %d bytes long", max),
			}
		}
		return nil
	})
}

// RequireCharacterClassesRule ensures the password contains characters from at least min distinct classes (upper, lower, digit, symbol).
func RequireCharacterClassesRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if min <= 0 {
			return nil
		}

		var upper, lower, digit, symbol int
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				upper = 1
			case unicode.IsLower(r):
				lower = 1
			case unicode.IsDigit(r):
				digit = 1
			case unicode.IsSymbol(r) || unicode.IsPunct(r) || unicode.IsSpace(r):
				symbol = 1
			}
		}

		if upper+lower+digit+symbol >= min {
			return nil
		}

		return &PasswordValidationError{
			Code:    "character_classes",
			Message: fmt.Sprintf("password must include at least %d character types", min),
		}
	})
}

// RejectContainingRule rejects passwords that embed one of the given values (case-insensitive).
// Values shorter than three characters are ignored.
func RejectContainingRule(values ...string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		lowered := strings.ToLower(password)
		for _, value := range values {
			value = strings.ToLower(strings.TrimSpace(value))
			if len(value) < 3 {
				continue
			}
			if local, _, ok := strings.Cut(value, "@"); ok {
				value = local
			}
			if len(value) >= 3 && strings.Contains(lowered, value) {
				return &PasswordValidationError{
					Code:    "contains_identity",
					Message: "password must not contain your username or email",
				}
			}
		}
		return nil
	})
}

// RequirePasswordStrengthRule enforces a minimum zxcvbn score to reject weak passwords.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if minScore <= 0 {
			return nil
		}
		if minScore > 4 {
			minScore = 4
		}

		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= minScore {
			return nil
		}

		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	})
}
