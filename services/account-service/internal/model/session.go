package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Session represents an authenticated session issued after password login or
// a completed OAuth sign-in.
type Session struct {
	ID                    bson.ObjectID `bson:"_id,omitempty"`
	AuthUserID            string        `bson:"auth_user_id"`
	AccessToken           string        `bson:"access_token"`
	RefreshToken          string        `bson:"refresh_token"`
	AccessTokenExpiresAt  time.Time     `bson:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time     `bson:"refresh_token_expires_at"`
	IPAddress             *string       `bson:"ip_address"`
	UserAgent             *string       `bson:"user_agent"`
	CreatedAt             time.Time     `bson:"created_at"`
	UpdatedAt             time.Time     `bson:"updated_at"`
}
