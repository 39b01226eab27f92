// Package tokenslot implements the per-profile, per-flow verification token
// lifecycle. A profile holds at most one active token per flow; issuing a new
// token overwrites the previous one, and a successful or expired verification
// clears the slot.
package tokenslot

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Flow identifies which verification workflow a token slot belongs to.
type Flow string

const (
	FlowVerify Flow = "verify"
	FlowReset  Flow = "reset"
	FlowChange Flow = "change"
)

// Default token lifetimes per flow.
const (
	VerifyTokenTTL = 24 * time.Hour
	ResetTokenTTL  = 24 * time.Hour
	ChangeTokenTTL = 24 * time.Hour
)

var (
	ErrNoToken  = errors.New("no active token")
	ErrMismatch = errors.New("token does not match")
	ErrExpired  = errors.New("token has expired")
)

// TokenSlot is the storage location for a single flow's active token.
// The zero value is the empty slot. PendingEmail is only populated for the
// email-change flow and must be non-empty exactly when Token is non-empty.
type TokenSlot struct {
	Token        string    `bson:"token,omitempty"        json:"token,omitempty"`
	ExpiresAt    time.Time `bson:"expires_at,omitempty"   json:"expires_at,omitempty"`
	PendingEmail string    `bson:"pending_email,omitempty" json:"pending_email,omitempty"`
}

// Issue returns a slot holding the given token. Any previously issued token is
// implicitly invalidated because the slot is replaced wholesale.
func Issue(token string, now time.Time, ttl time.Duration, pendingEmail string) TokenSlot {
	return TokenSlot{
		Token:        token,
		ExpiresAt:    now.Add(ttl),
		PendingEmail: pendingEmail,
	}
}

// Empty reports whether the slot holds no active token.
func (s TokenSlot) Empty() bool {
	return s.Token == ""
}

// Clear returns the empty slot.
func (s TokenSlot) Clear() TokenSlot {
	return TokenSlot{}
}

// Verify checks a supplied token against the slot. The comparison is an exact
// match on the stored value; no normalization is applied. An ErrExpired result
// means the caller must clear the slot and re-issue.
func (s TokenSlot) Verify(supplied string, now time.Time) error {
	if s.Empty() {
		return ErrNoToken
	}
	if s.Token != supplied {
		return ErrMismatch
	}
	if now.After(s.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

// NewSecureToken generates a cryptographically secure random token with 256
// bits of entropy, hex encoded.
func NewSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewNumericCode generates a 6-digit verification code. Numeric codes are only
// used for signup verification, where they are paired with a short lifetime.
func NewNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
