package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/reunitehq/reunite-api/services/account-service/internal/tokenslot"
)

// Profile represents an application-level user record, distinct from the
// credential store's own user. Exactly one Profile exists per credential
// identity; AuthUserID is re-pointed when an OAuth identity claims an
// existing profile.
type Profile struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	AuthUserID    string        `bson:"auth_user_id"`
	Username      string        `bson:"username"`
	Email         string        `bson:"email"`
	HasPassword   bool          `bson:"has_password"`
	EmailVerified bool          `bson:"email_verified"`

	// One slot per verification flow. At most one active token each.
	VerifySlot tokenslot.TokenSlot `bson:"verify_slot,omitempty"`
	ResetSlot  tokenslot.TokenSlot `bson:"reset_slot,omitempty"`
	ChangeSlot tokenslot.TokenSlot `bson:"change_slot,omitempty"`

	// Anchor for the rolling 24-hour email change rate limit. Zero when the
	// email has never been changed.
	LastEmailChangeAt time.Time `bson:"last_email_change_at,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}
