package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Notification represents an in-app notification event. The verification
// workflow only ever inserts these; listing and pagination live elsewhere.
type Notification struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	ProfileID bson.ObjectID `bson:"profile_id"`
	EventID   string        `bson:"event_id"`
	Kind      string        `bson:"kind"`
	Message   string        `bson:"message"`
	Read      bool          `bson:"read"`
	CreatedAt time.Time     `bson:"created_at"`
}

// Notification kinds emitted by the verification workflow.
const (
	NotificationEmailVerified = "email_verified"
	NotificationEmailChanged  = "email_changed"
)
