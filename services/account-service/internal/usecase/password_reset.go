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
	"github.com/reunitehq/reunite-api/shared/security"
)

// PasswordResetUsecase defines the business logic for password reset token operations.
type PasswordResetUsecase interface {
	// RequestReset initiates the password reset process for a given email.
	// A nil error never reveals whether the email belongs to an account.
	RequestReset(ctx context.Context, email string) error

	// ValidateResetToken checks whether the token is currently usable,
	// without consuming it.
	ValidateResetToken(ctx context.Context, profileID, token string) error

	// ConfirmReset consumes the token and rotates the credential password.
	ConfirmReset(ctx context.Context, profileID, token, newPassword string) error
}

type passwordResetUsecase struct {
	profileRepo   repository.ProfileRepository
	credentialSvc credential.Service
	notifier      Notifier
	cfg           *config.AccountServiceConfig
	logger        *zerolog.Logger
}

// NewPasswordResetUsecase creates a new instance of PasswordResetUsecase.
func NewPasswordResetUsecase(
	profileRepo repository.ProfileRepository,
	credentialSvc credential.Service,
	notifier Notifier,
	cfg *config.AccountServiceConfig,
	logger *zerolog.Logger,
) PasswordResetUsecase {
	return &passwordResetUsecase{
		profileRepo:   profileRepo,
		credentialSvc: credentialSvc,
		notifier:      notifier,
		cfg:           cfg,
		logger:        logger,
	}
}

func (u *passwordResetUsecase) RequestReset(ctx context.Context, email string) error {
	profile, err := u.profileRepo.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// To prevent email enumeration, do not reveal that the email
			// does not exist.
			u.logger.Info().Msg("password reset requested for unknown email")
			return nil
		}
		return err
	}

	if !profile.HasPassword {
		// OAuth-only account: report success but never store a token.
		u.logger.Info().Str("profile_id", profile.ID.Hex()).
			Msg("password reset requested for passwordless profile")
		return nil
	}

	token, err := tokenslot.NewSecureToken()
	if err != nil {
		return err
	}

	ttl := u.cfg.Verification.ResetTokenExpiresIn
	slot := tokenslot.Issue(token, time.Now(), ttl, "")
	if err := u.profileRepo.SetTokenSlot(ctx, profile.ID.Hex(), tokenslot.FlowReset, slot); err != nil {
		return err
	}

	if err := u.notifier.SendPasswordResetLink(profile.Email, token, profile.ID.Hex(), ttl); err != nil {
		// Never leave a valid-but-undelivered token behind.
		if rollbackErr := u.profileRepo.SetTokenSlot(
			ctx, profile.ID.Hex(), tokenslot.FlowReset, tokenslot.TokenSlot{},
		); rollbackErr != nil {
			u.logger.Error().Err(rollbackErr).Str("profile_id", profile.ID.Hex()).
				Msg("failed to roll back reset token after delivery failure")
		}
		return fmt.Errorf("send password reset email: %w", err)
	}

	return nil
}

func (u *passwordResetUsecase) ValidateResetToken(ctx context.Context, profileID, token string) error {
	profile, err := u.profileRepo.GetProfile(ctx, profileID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrTokenNotFound
		}
		return err
	}

	return u.checkSlot(ctx, profile, token)
}

func (u *passwordResetUsecase) ConfirmReset(ctx context.Context, profileID, token, newPassword string) error {
	if err := security.CheckPasswordPolicy("newPassword", newPassword); err != nil {
		return err
	}

	profile, err := u.profileRepo.GetProfile(ctx, profileID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrTokenNotFound
		}
		return err
	}

	if err := u.checkSlot(ctx, profile, token); err != nil {
		return err
	}

	consumed, err := u.profileRepo.ConsumeTokenSlot(ctx, profileID, tokenslot.FlowReset, token)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrTokenMismatch
	}

	// The credential mutation is authoritative. Profile bookkeeping after a
	// successful credential update must not fail the flow.
	if err := u.credentialSvc.UpdateCredential(ctx, profile.AuthUserID, credential.UpdateCredentialParams{
		Password: &newPassword,
	}); err != nil {
		return fmt.Errorf("update credential password: %w", err)
	}

	hasPassword := true
	if _, err := u.profileRepo.UpdateProfile(ctx, profileID, repository.UpdateProfileParams{
		HasPassword: &hasPassword,
	}); err != nil {
		u.logger.Error().Err(err).Str("profile_id", profileID).
			Msg("profile bookkeeping failed after password rotation; reconcile out-of-band")
	}

	return nil
}

func (u *passwordResetUsecase) checkSlot(ctx context.Context, profile *model.Profile, token string) error {
	switch err := profile.ResetSlot.Verify(token, time.Now()); {
	case errors.Is(err, tokenslot.ErrNoToken):
		return ErrTokenNotFound
	case errors.Is(err, tokenslot.ErrMismatch):
		return ErrTokenMismatch
	case errors.Is(err, tokenslot.ErrExpired):
		if clearErr := u.profileRepo.SetTokenSlot(
			ctx, profile.ID.Hex(), tokenslot.FlowReset, tokenslot.TokenSlot{},
		); clearErr != nil {
			u.logger.Error().Err(clearErr).Str("profile_id", profile.ID.Hex()).
				Msg("failed to clear expired reset token")
		}
		return ErrTokenExpired
	default:
		return err
	}
}
