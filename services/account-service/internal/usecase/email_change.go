package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/reunitehq/reunite-api/services/account-service/internal/config"
	"github.com/reunitehq/reunite-api/services/account-service/internal/credential"
	"github.com/reunitehq/reunite-api/services/account-service/internal/model"
	"github.com/reunitehq/reunite-api/services/account-service/internal/repository"
	"github.com/reunitehq/reunite-api/services/account-service/internal/tokenslot"
)

// EmailChangeUsecase defines the business logic for changing a profile's email.
type EmailChangeUsecase interface {
	// RequestChange issues a confirmation token for the new address. The
	// token is mailed to the NEW email, which becomes the pending value.
	// callerAuthUserID is the credential user asserted by the session token;
	// only the profile's owner may request a change.
	RequestChange(ctx context.Context, callerAuthUserID, profileID, newEmail string) error

	// ConfirmChange consumes the token and promotes the pending email.
	ConfirmChange(ctx context.Context, profileID, token string) error
}

type emailChangeUsecase struct {
	profileRepo   repository.ProfileRepository
	credentialSvc credential.Service
	notifier      Notifier
	cfg           *config.AccountServiceConfig
	logger        *zerolog.Logger
}

// NewEmailChangeUsecase creates a new instance of EmailChangeUsecase.
func NewEmailChangeUsecase(
	profileRepo repository.ProfileRepository,
	credentialSvc credential.Service,
	notifier Notifier,
	cfg *config.AccountServiceConfig,
	logger *zerolog.Logger,
) EmailChangeUsecase {
	return &emailChangeUsecase{
		profileRepo:   profileRepo,
		credentialSvc: credentialSvc,
		notifier:      notifier,
		cfg:           cfg,
		logger:        logger,
	}
}

func (u *emailChangeUsecase) RequestChange(ctx context.Context, callerAuthUserID, profileID, newEmail string) error {
	profile, err := u.profileRepo.GetProfile(ctx, profileID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrProfileNotFound
		}
		return err
	}
	if callerAuthUserID == "" || profile.AuthUserID != callerAuthUserID {
		return ErrNotProfileOwner
	}

	// The new address must not belong to a different active profile.
	existing, err := u.profileRepo.GetProfileByEmail(ctx, newEmail)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	if existing != nil && existing.ID != profile.ID {
		return ErrEmailTaken
	}

	if err := u.checkRateLimit(profile); err != nil {
		return err
	}

	token, err := tokenslot.NewSecureToken()
	if err != nil {
		return err
	}

	ttl := u.cfg.Verification.ChangeTokenExpiresIn
	slot := tokenslot.Issue(token, time.Now(), ttl, newEmail)
	if err := u.profileRepo.SetTokenSlot(ctx, profileID, tokenslot.FlowChange, slot); err != nil {
		return err
	}

	if err := u.notifier.SendEmailChangeLink(newEmail, token, profileID, ttl); err != nil {
		// Never leave a valid-but-undelivered token behind.
		if rollbackErr := u.profileRepo.SetTokenSlot(
			ctx, profileID, tokenslot.FlowChange, tokenslot.TokenSlot{},
		); rollbackErr != nil {
			u.logger.Error().Err(rollbackErr).Str("profile_id", profileID).
				Msg("failed to roll back email change token after delivery failure")
		}
		return fmt.Errorf("send email change confirmation: %w", err)
	}

	return nil
}

// checkRateLimit enforces one successful change per rolling window, measured
// from the last successful change.
func (u *emailChangeUsecase) checkRateLimit(profile *model.Profile) error {
	if profile.LastEmailChangeAt.IsZero() {
		return nil
	}

	interval := u.cfg.Verification.EmailChangeMinInterval
	elapsed := time.Since(profile.LastEmailChangeAt)
	if elapsed >= interval {
		return nil
	}

	remaining := interval - elapsed
	return &RateLimitedError{
		HoursRemaining: int(math.Ceil(remaining.Hours())),
	}
}

func (u *emailChangeUsecase) ConfirmChange(ctx context.Context, profileID, token string) error {
	profile, err := u.profileRepo.GetProfile(ctx, profileID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrTokenNotFound
		}
		return err
	}

	slot := profile.ChangeSlot
	switch err := slot.Verify(token, time.Now()); {
	case errors.Is(err, tokenslot.ErrNoToken):
		return ErrTokenNotFound
	case errors.Is(err, tokenslot.ErrMismatch):
		return ErrTokenMismatch
	case errors.Is(err, tokenslot.ErrExpired):
		if clearErr := u.profileRepo.SetTokenSlot(
			ctx, profileID, tokenslot.FlowChange, tokenslot.TokenSlot{},
		); clearErr != nil {
			u.logger.Error().Err(clearErr).Str("profile_id", profileID).
				Msg("failed to clear expired email change token")
		}
		return ErrTokenExpired
	case err != nil:
		return err
	}

	if slot.PendingEmail == "" {
		return ErrTokenNotFound
	}

	consumed, err := u.profileRepo.ConsumeTokenSlot(ctx, profileID, tokenslot.FlowChange, token)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrTokenMismatch
	}

	// The credential mutation is authoritative; profile bookkeeping after it
	// must not fail the flow.
	newEmail := slot.PendingEmail
	if err := u.credentialSvc.UpdateCredential(ctx, profile.AuthUserID, credential.UpdateCredentialParams{
		Email: &newEmail,
	}); err != nil {
		return fmt.Errorf("update credential email: %w", err)
	}

	now := time.Now()
	if _, err := u.profileRepo.UpdateProfile(ctx, profileID, repository.UpdateProfileParams{
		Email:             &newEmail,
		LastEmailChangeAt: &now,
	}); err != nil {
		u.logger.Error().Err(err).Str("profile_id", profileID).
			Msg("profile bookkeeping failed after email change; reconcile out-of-band")
	}

	u.notifier.EmitEvent(ctx, profile.ID, model.NotificationEmailChanged,
		fmt.Sprintf("Your email address was changed to %s.", newEmail))

	return nil
}
