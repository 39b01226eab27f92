package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Settings represents a profile's application preferences. A default record
// is provisioned best-effort when a profile is created.
type Settings struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	ProfileID bson.ObjectID `bson:"profile_id"`
	Theme     string        `bson:"theme"`
	Locale    string        `bson:"locale"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

// Default settings values for newly provisioned profiles.
const (
	DefaultTheme  = "system"
	DefaultLocale = "en"
)
