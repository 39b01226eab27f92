package usecase

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the verification flows. Token verification errors
// are deliberately specific (expired vs mismatch vs missing) because the token
// itself is the secret; account existence is what gets masked, not token
// state.
var (
	ErrTokenNotFound    = errors.New("verification token not found")
	ErrTokenMismatch    = errors.New("verification token does not match")
	ErrTokenExpired     = errors.New("verification token has expired")
	ErrAlreadyCompleted = errors.New("flow already completed")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrEmailTaken       = errors.New("email already belongs to another profile")
	ErrNotProfileOwner  = errors.New("profile does not belong to the calling session")

	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session token")
)

// RateLimitedError reports an email change attempted inside the rolling
// 24-hour window, with the whole hours left until the next change is allowed.
type RateLimitedError struct {
	HoursRemaining int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("email was changed recently; try again in %d hour(s)", e.HoursRemaining)
}
