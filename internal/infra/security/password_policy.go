package security

import (
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
)

const (
	defaultMinPasswordLength   = 10
	defaultMaxPasswordLength   = 128
	defaultMinCharacterClasses = 3
	defaultMinZxcvbnScore      = 3
)

// PasswordPolicyConfig tunes the password policy.
type PasswordPolicyConfig struct {
	MinLength           int
	MaxLength           int
	MinCharacterClasses int
	MinStrengthScore    int
}

// DefaultPasswordPolicyConfig returns the service defaults.
func DefaultPasswordPolicyConfig() PasswordPolicyConfig {
	return PasswordPolicyConfig{
		MinLength:           defaultMinPasswordLength,
		MaxLength:           defaultMaxPasswordLength,
		MinCharacterClasses: defaultMinCharacterClasses,
		MinStrengthScore:    defaultMinZxcvbnScore,
	}
}

// DefaultPasswordValidator returns the built-in validator enforcing length,
// character class, and zxcvbn strength checks without user context.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordPolicy(DefaultPasswordPolicyConfig()).validator(domain.PasswordContext{})
}

// PasswordPolicy adapts the password validator to the port.PasswordPolicyValidator interface.
// The validator is rebuilt per call so the user's own identity feeds the strength estimate.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

// NewPasswordPolicy builds a policy from cfg.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	return &PasswordPolicy{cfg: cfg}
}

// Validate ensures the password meets policy requirements for the given user.
func (p *PasswordPolicy) Validate(password string, ctx domain.PasswordContext) error {
	return p.validator(ctx).Validate(password)
}

func (p *PasswordPolicy) validator(ctx domain.PasswordContext) *PasswordValidator {
	inputs := make([]string, 0, 2)
	if ctx.Username != "" {
		inputs = append(inputs, ctx.Username)
	}
	if ctx.Email != "" {
		inputs = append(inputs, ctx.Email)
	}

	return NewPasswordValidator(
		MinLengthRule(p.cfg.MinLength),
		MaxLengthRule(p.cfg.MaxLength),
		RequireCharacterClassesRule(p.cfg.MinCharacterClasses),
		RejectContainingRule(inputs...),
		RequirePasswordStrengthRule(p.cfg.MinStrengthScore, inputs...),
	)
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)
