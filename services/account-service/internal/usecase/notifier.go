package usecase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Notifier is the delivery surface the verification flows depend on.
// *notifier.Notifier satisfies it.
type Notifier interface {
	SendVerificationCode(to, code, profileID string, expiresIn time.Duration) error
	SendPasswordResetLink(to, token, profileID string, expiresIn time.Duration) error
	SendEmailChangeLink(newEmail, token, profileID string, expiresIn time.Duration) error
	EmitEvent(ctx context.Context, profileID bson.ObjectID, kind, message string)
}
