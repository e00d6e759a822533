package core

import (
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validatorInst *validator.Validate
)

// Validator returns the shared validator instance, registering the custom
// tags this module needs on first use. Struct tags on Site/Monitor/
// HistoryEntry/Setting drive the bulk of validation; IdentifierSafe covers
// the one constraint with no off-the-shelf tag equivalent.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validatorInst = validator.New()
		_ = validatorInst.RegisterValidation("identifiersafe", validateIdentifierSafe)
	})
	return validatorInst
}

// validateIdentifierSafe rejects empty strings and ASCII control characters,
// the repository-layer invariant every identifier must satisfy.
func validateIdentifierSafe(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return IsSafeIdentifier(s)
}

// IsSafeIdentifier reports whether s is non-empty and free of ASCII control
// characters, callable directly by repositories that need the check outside
// a struct-tag context (e.g. validating a raw column read back from SQL).
func IsSafeIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
