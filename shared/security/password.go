package security

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/matthewhartstonge/argon2"
)

// HashPassword hashes a plaintext password using argon2id with the library
// defaults.
func HashPassword(password string) (string, error) {
	cfg := argon2.DefaultConfig()

	encoded, err := cfg.HashEncoded([]byte(password))
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(encoded), nil
}

// VerifyPassword checks a plaintext password against an encoded argon2 hash.
func VerifyPassword(password, encodedHash string) (bool, error) {
	ok, err := argon2.VerifyEncoded([]byte(password), []byte(encodedHash))
	if err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}

	return ok, nil
}

// passwordSymbols is the fixed punctuation set accepted by the password
// policy.
const passwordSymbols = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?~" + "`"

// MinPasswordLength is the policy's minimum password length.
const MinPasswordLength = 8

// PolicyError describes a password policy violation for a specific field.
type PolicyError struct {
	Field  string
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason
}

// CheckPasswordPolicy validates a candidate password against the policy:
// minimum length 8, at least one digit, and at least one symbol from the
// fixed punctuation set. It returns a field-specific error on violation.
func CheckPasswordPolicy(field, password string) error {
	if len(password) < MinPasswordLength {
		return &PolicyError{
			Field:  field,
			Reason: fmt.Sprintf("password must be at least %d characters long", MinPasswordLength),
		}
	}

	hasDigit := false
	hasSymbol := false
	for _, r := range password {
		if unicode.IsDigit(r) {
			hasDigit = true
		}
		if strings.ContainsRune(passwordSymbols, r) {
			hasSymbol = true
		}
	}

	if !hasDigit {
		return &PolicyError{Field: field, Reason: "password must contain at least one digit"}
	}
	if !hasSymbol {
		return &PolicyError{Field: field, Reason: "password must contain at least one symbol"}
	}

	return nil
}
