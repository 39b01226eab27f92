package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/reunitehq/reunite-api/services/account-service/internal/credential"
	"github.com/reunitehq/reunite-api/services/account-service/internal/model"
	"github.com/reunitehq/reunite-api/services/account-service/internal/repository"
	"github.com/reunitehq/reunite-api/shared/provider"
)

// AccountLinker reconciles an OAuth identity with the profile store after a
// successful OAuth sign-in.
type AccountLinker interface {
	// LinkOrCreate resolves the identity to exactly one profile: the one
	// already linked to it, an existing profile claimed by matching email,
	// or a newly created one.
	LinkOrCreate(ctx context.Context, identity *provider.OAuthIdentity) (*model.Profile, error)
}

type accountLinker struct {
	profileRepo   repository.ProfileRepository
	settingsRepo  repository.SettingsRepository
	credentialSvc credential.Service
	logger        *zerolog.Logger
}

// NewAccountLinker creates a new instance of AccountLinker.
func NewAccountLinker(
	profileRepo repository.ProfileRepository,
	settingsRepo repository.SettingsRepository,
	credentialSvc credential.Service,
	logger *zerolog.Logger,
) AccountLinker {
	return &accountLinker{
		profileRepo:   profileRepo,
		settingsRepo:  settingsRepo,
		credentialSvc: credentialSvc,
		logger:        logger,
	}
}

func (l *accountLinker) LinkOrCreate(ctx context.Context, identity *provider.OAuthIdentity) (*model.Profile, error) {
	authUserID, err := l.credentialSvc.GetOrCreateOAuthUser(
		ctx, identity.Provider, identity.Subject, identity.Email, identity.EmailVerified)
	if err != nil {
		return nil, fmt.Errorf("resolve oauth credential user: %w", err)
	}

	profile, err := l.reconcile(ctx, authUserID, identity)
	if err != nil {
		// Profile reconciliation must not abort the sign-in; it is retried
		// on the next login.
		l.logger.Error().Err(err).Str("email", identity.Email).
			Msg("profile reconciliation failed after oauth sign-in")
		return &model.Profile{AuthUserID: authUserID}, nil
	}

	return profile, nil
}

func (l *accountLinker) reconcile(
	ctx context.Context,
	authUserID string,
	identity *provider.OAuthIdentity,
) (*model.Profile, error) {
	profile, err := l.profileRepo.GetProfileByAuthUserID(ctx, authUserID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// An existing profile with the same email is claimed by the new
	// identity, keeping the profile's password capability intact. Only a
	// provider-verified address may claim a profile; an unverified one waits
	// until the next sign-in after verification.
	profile, err = l.profileRepo.GetProfileByEmail(ctx, identity.Email)
	if err == nil {
		if !identity.EmailVerified {
			return nil, fmt.Errorf("refusing to claim profile %s: provider did not verify %s",
				profile.ID.Hex(), identity.Email)
		}
		if err := l.profileRepo.RepointAuthUser(ctx, profile.ID.Hex(), authUserID); err != nil {
			return nil, fmt.Errorf("repoint profile to oauth identity: %w", err)
		}
		profile.AuthUserID = authUserID
		return profile, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// First sign-in with an unseen email: provision a fresh profile. The
	// email stays unverified until confirmed through the verification flow,
	// regardless of the provider's assertion.
	username, err := GenerateUsername(identity.Email)
	if err != nil {
		return nil, err
	}

	profile, err = l.profileRepo.CreateProfile(ctx, &model.Profile{
		AuthUserID:    authUserID,
		Username:      username,
		Email:         identity.Email,
		HasPassword:   false,
		EmailVerified: false,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost a provisioning race; the winner's profile is the one.
			if existing, findErr := l.profileRepo.GetProfileByEmail(ctx, identity.Email); findErr == nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create profile for oauth identity: %w", err)
	}

	if _, err := l.settingsRepo.CreateDefault(ctx, profile.ID); err != nil {
		l.logger.Error().Err(err).Str("profile_id", profile.ID.Hex()).
			Msg("failed to provision default settings")
	}

	return profile, nil
}

// GenerateUsername derives a unique-ish username from an email's local part
// plus a random numeric suffix.
func GenerateUsername(email string) (string, error) {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}

	var sb strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	base := sb.String()
	if base == "" {
		base = "user"
	}

	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate username suffix: %w", err)
	}

	return fmt.Sprintf("%s%04d", base, n.Int64()), nil
}
