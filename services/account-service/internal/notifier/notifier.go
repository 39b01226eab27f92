// Package notifier delivers verification tokens by email and emits in-app
// notification events for completed flows.
package notifier

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/reunitehq/reunite-api/services/account-service/internal/model"
	"github.com/reunitehq/reunite-api/services/account-service/internal/repository"
)

// EmailSender is the transactional email surface the notifier needs.
// *mailer.Mailer satisfies it.
type EmailSender interface {
	SendHTML(to []string, subject, htmlBody string) error
}

// Config holds the link targets embedded in outgoing emails.
type Config struct {
	// APIBaseURL is the public base URL of this service, used for
	// link-based confirmation endpoints.
	APIBaseURL string

	// AppPasswordResetURL is the web app page where the user enters a new
	// password.
	AppPasswordResetURL string
}

// Notifier wraps the mailer with the verification workflow's templates.
type Notifier struct {
	sender           EmailSender
	notificationRepo repository.NotificationRepository
	logger           *zerolog.Logger
	cfg              Config
}

func New(
	sender EmailSender,
	notificationRepo repository.NotificationRepository,
	logger *zerolog.Logger,
	cfg Config,
) *Notifier {
	return &Notifier{
		sender:           sender,
		notificationRepo: notificationRepo,
		logger:           logger,
		cfg:              cfg,
	}
}

func confirmLink(base, path, token, profileID string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("user_id", profileID)
	return fmt.Sprintf("%s%s?%s", base, path, q.Encode())
}

// SendVerificationCode mails the signup verification code and confirmation
// link to the profile's address.
func (n *Notifier) SendVerificationCode(to, code, profileID string, expiresIn time.Duration) error {
	link := confirmLink(n.cfg.APIBaseURL, "/api/v1/auth/verify/confirm", code, profileID)
	htmlBody := fmt.Sprintf(`
		<p>Hi,</p>
		<p>Welcome to Reunite. Please confirm your email address by clicking the link below:</p>

		<p><a href="%s">%s</a></p>

		<p>Or enter this code when prompted: <strong>%s</strong></p>

		<p>This code will expire in %s.</p>
		<p>If you did not create an account, you can safely ignore this email.</p>

		<p>Thank you,</p>
		<p>The Reunite Team</p>
	`, link, link, code, expiresIn)

	return n.sender.SendHTML([]string{to}, "Confirm your email address", htmlBody)
}

// SendPasswordResetLink mails the reset link to the account's address.
func (n *Notifier) SendPasswordResetLink(to, token, profileID string, expiresIn time.Duration) error {
	link := confirmLink(n.cfg.AppPasswordResetURL, "", token, profileID)
	htmlBody := fmt.Sprintf(`
		<p>Hi,</p>
		<p>We received a request to reset the password for your account.</p>
		<p>If you made this request, please click the link below to create a new password:</p>

		<p><a href="%s">%s</a></p>

		<p>This link will expire in %s for your security.</p>
		<p>If you did not request a password reset, you can safely ignore this email&mdash;your account will remain secure.</p>

		<p>Thank you,</p>
		<p>The Reunite Team</p>
	`, link, link, expiresIn)

	return n.sender.SendHTML([]string{to}, "Password Reset Request", htmlBody)
}

// SendEmailChangeLink mails the confirmation link to the NEW address awaiting
// confirmation.
func (n *Notifier) SendEmailChangeLink(newEmail, token, profileID string, expiresIn time.Duration) error {
	link := confirmLink(n.cfg.APIBaseURL, "/api/v1/auth/email/confirm", token, profileID)
	htmlBody := fmt.Sprintf(`
		<p>Hi,</p>
		<p>We received a request to change the email address on your account to this one.</p>
		<p>If you made this request, please confirm by clicking the link below:</p>

		<p><a href="%s">%s</a></p>

		<p>This link will expire in %s.</p>
		<p>If you did not request this change, you can safely ignore this email.</p>

		<p>Thank you,</p>
		<p>The Reunite Team</p>
	`, link, link, expiresIn)

	return n.sender.SendHTML([]string{newEmail}, "Confirm your new email address", htmlBody)
}

// EmitEvent records an in-app notification. Failures are logged and
// swallowed; events are best-effort.
func (n *Notifier) EmitEvent(ctx context.Context, profileID bson.ObjectID, kind, message string) {
	_, err := n.notificationRepo.CreateNotification(ctx, &model.Notification{
		ProfileID: profileID,
		EventID:   uuid.NewString(),
		Kind:      kind,
		Message:   message,
	})
	if err != nil {
		n.logger.Error().Err(err).
			Str("profile_id", profileID.Hex()).
			Str("kind", kind).
			Msg("failed to emit notification event")
	}
}
