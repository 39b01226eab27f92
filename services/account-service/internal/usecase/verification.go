package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/reunitehq/reunite-api/services/account-service/internal/config"
	"github.com/reunitehq/reunite-api/services/account-service/internal/credential"
	"github.com/reunitehq/reunite-api/services/account-service/internal/model"
	"github.com/reunitehq/reunite-api/services/account-service/internal/repository"
	"github.com/reunitehq/reunite-api/services/account-service/internal/tokenslot"
)

// VerificationUsecase defines the business logic for signup email verification.
type VerificationUsecase interface {
	// RequestVerification issues a fresh verification code for the given
	// email. A nil error never reveals whether the email belongs to an
	// account.
	RequestVerification(ctx context.Context, email string) error

	// ConfirmVerification consumes a verification code and marks the
	// profile's email as verified.
	ConfirmVerification(ctx context.Context, profileID, token string) error
}

type verificationUsecase struct {
	profileRepo   repository.ProfileRepository
	credentialSvc credential.Service
	notifier      Notifier
	cfg           *config.AccountServiceConfig
	logger        *zerolog.Logger
}

// NewVerificationUsecase creates a new instance of VerificationUsecase.
func NewVerificationUsecase(
	profileRepo repository.ProfileRepository,
	credentialSvc credential.Service,
	notifier Notifier,
	cfg *config.AccountServiceConfig,
	logger *zerolog.Logger,
) VerificationUsecase {
	return &verificationUsecase{
		profileRepo:   profileRepo,
		credentialSvc: credentialSvc,
		notifier:      notifier,
		cfg:           cfg,
		logger:        logger,
	}
}

func (u *verificationUsecase) RequestVerification(ctx context.Context, email string) error {
	profile, err := u.profileRepo.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// To prevent email enumeration, do not reveal that the email
			// does not exist.
			u.logger.Info().Msg("verification requested for unknown email")
			return nil
		}
		return err
	}

	if profile.EmailVerified {
		u.logger.Info().Str("profile_id", profile.ID.Hex()).
			Msg("verification requested for already verified email")
		return nil
	}

	code, err := tokenslot.NewNumericCode()
	if err != nil {
		return err
	}

	ttl := u.cfg.Verification.CodeExpiresIn
	slot := tokenslot.Issue(code, time.Now(), ttl, "")
	if err := u.profileRepo.SetTokenSlot(ctx, profile.ID.Hex(), tokenslot.FlowVerify, slot); err != nil {
		return err
	}

	if err := u.notifier.SendVerificationCode(profile.Email, code, profile.ID.Hex(), ttl); err != nil {
		// Never leave a valid-but-undelivered token behind.
		if rollbackErr := u.profileRepo.SetTokenSlot(
			ctx, profile.ID.Hex(), tokenslot.FlowVerify, tokenslot.TokenSlot{},
		); rollbackErr != nil {
			u.logger.Error().Err(rollbackErr).Str("profile_id", profile.ID.Hex()).
				Msg("failed to roll back verification token after delivery failure")
		}
		return fmt.Errorf("send verification email: %w", err)
	}

	return nil
}

func (u *verificationUsecase) ConfirmVerification(ctx context.Context, profileID, token string) error {
	profile, err := u.profileRepo.GetProfile(ctx, profileID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrTokenNotFound
		}
		return err
	}

	if profile.EmailVerified {
		return ErrAlreadyCompleted
	}

	if err := u.checkSlot(ctx, profile, token); err != nil {
		return err
	}

	consumed, err := u.profileRepo.ConsumeTokenSlot(ctx, profileID, tokenslot.FlowVerify, token)
	if err != nil {
		return err
	}
	if !consumed {
		// A concurrent confirm or a re-issue got there first.
		return ErrTokenMismatch
	}

	verified := true
	if _, err := u.profileRepo.UpdateProfile(ctx, profileID, repository.UpdateProfileParams{
		EmailVerified: &verified,
	}); err != nil {
		return err
	}

	confirmed := true
	if err := u.credentialSvc.UpdateCredential(ctx, profile.AuthUserID, credential.UpdateCredentialParams{
		EmailConfirmed: &confirmed,
	}); err != nil {
		u.logger.Error().Err(err).Str("profile_id", profileID).
			Msg("failed to confirm email on credential store")
	}

	u.notifier.EmitEvent(ctx, profile.ID, model.NotificationEmailVerified, "Your email address has been verified.")

	return nil
}

func (u *verificationUsecase) checkSlot(ctx context.Context, profile *model.Profile, token string) error {
	switch err := profile.VerifySlot.Verify(token, time.Now()); {
	case errors.Is(err, tokenslot.ErrNoToken):
		return ErrTokenNotFound
	case errors.Is(err, tokenslot.ErrMismatch):
		return ErrTokenMismatch
	case errors.Is(err, tokenslot.ErrExpired):
		// Expired is terminal: clear the slot so a retry reports the token
		// as gone and the caller re-issues.
		if clearErr := u.profileRepo.SetTokenSlot(
			ctx, profile.ID.Hex(), tokenslot.FlowVerify, tokenslot.TokenSlot{},
		); clearErr != nil {
			u.logger.Error().Err(clearErr).Str("profile_id", profile.ID.Hex()).
				Msg("failed to clear expired verification token")
		}
		return ErrTokenExpired
	default:
		return err
	}
}
