package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/reunitehq/reunite-api/services/account-service/internal/config"
	"github.com/reunitehq/reunite-api/services/account-service/internal/credential"
	"github.com/reunitehq/reunite-api/services/account-service/internal/model"
	"github.com/reunitehq/reunite-api/services/account-service/internal/repository"
	"github.com/reunitehq/reunite-api/services/account-service/pkg/types"
	"github.com/reunitehq/reunite-api/shared/auth"
	"github.com/reunitehq/reunite-api/shared/security"
)

// AuthUsecase defines the interface for authentication-related use cases.
type AuthUsecase interface {
	Login(ctx context.Context, params LoginParams) (*types.Tokens, error)
	Register(ctx context.Context, params RegisterParams) (*types.Tokens, error)

	// IssueSession mints session tokens for an already-authenticated
	// credential user, such as after a completed OAuth sign-in.
	IssueSession(ctx context.Context, authUserID string, ipAddress, userAgent *string) (*types.Tokens, error)

	// CurrentUser resolves a session access token to the signed-in profile.
	CurrentUser(ctx context.Context, accessToken string) (*model.Profile, error)
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Email     string
	Password  string
	IPAddress *string
	UserAgent *string
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	Email     string
	Password  string
	IPAddress *string
	UserAgent *string
}

type authUsecase struct {
	profileRepo   repository.ProfileRepository
	settingsRepo  repository.SettingsRepository
	sessionRepo   repository.SessionRepository
	credentialSvc credential.Service
	verification  VerificationUsecase
	jwtAuth       auth.JWTAuthenticator
	cfg           *config.AccountServiceConfig
	logger        *zerolog.Logger
}

func NewAuthUsecase(
	profileRepo repository.ProfileRepository,
	settingsRepo repository.SettingsRepository,
	sessionRepo repository.SessionRepository,
	credentialSvc credential.Service,
	verification VerificationUsecase,
	jwtAuth auth.JWTAuthenticator,
	cfg *config.AccountServiceConfig,
	logger *zerolog.Logger,
) AuthUsecase {
	return &authUsecase{
		profileRepo:   profileRepo,
		settingsRepo:  settingsRepo,
		sessionRepo:   sessionRepo,
		credentialSvc: credentialSvc,
		verification:  verification,
		jwtAuth:       jwtAuth,
		cfg:           cfg,
		logger:        logger,
	}
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*types.Tokens, error) {
	authUserID, err := u.credentialSvc.SignIn(ctx, params.Email, params.Password)
	if err != nil {
		if errors.Is(err, credential.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return u.IssueSession(ctx, authUserID, params.IPAddress, params.UserAgent)
}

func (u *authUsecase) Register(ctx context.Context, params RegisterParams) (*types.Tokens, error) {
	if err := security.CheckPasswordPolicy("password", params.Password); err != nil {
		return nil, err
	}

	_, err := u.profileRepo.GetProfileByEmail(ctx, params.Email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	authUserID, err := u.credentialSvc.CreateUser(ctx, params.Email, params.Password)
	if err != nil {
		if errors.Is(err, credential.ErrUserExists) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	username, err := GenerateUsername(params.Email)
	if err != nil {
		return nil, err
	}

	profile, err := u.profileRepo.CreateProfile(ctx, &model.Profile{
		AuthUserID:    authUserID,
		Username:      username,
		Email:         params.Email,
		HasPassword:   true,
		EmailVerified: false,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	if _, err := u.settingsRepo.CreateDefault(ctx, profile.ID); err != nil {
		u.logger.Error().Err(err).Str("profile_id", profile.ID.Hex()).
			Msg("failed to provision default settings")
	}

	// Verification is best-effort at signup; the user can always request a
	// resend.
	if err := u.verification.RequestVerification(ctx, params.Email); err != nil {
		u.logger.Error().Err(err).Str("profile_id", profile.ID.Hex()).
			Msg("failed to send signup verification email")
	}

	return u.IssueSession(ctx, authUserID, params.IPAddress, params.UserAgent)
}

func (u *authUsecase) CurrentUser(ctx context.Context, accessToken string) (*model.Profile, error) {
	identity, err := u.credentialSvc.GetUserByToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, credential.ErrInvalidAccessToken) || errors.Is(err, credential.ErrUserNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	profile, err := u.profileRepo.GetProfileByAuthUserID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	return profile, nil
}

func (u *authUsecase) IssueSession(
	ctx context.Context,
	authUserID string,
	ipAddress, userAgent *string,
) (*types.Tokens, error) {
	session, err := u.sessionRepo.CreateSession(ctx, &model.Session{
		AuthUserID: authUserID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
	})
	if err != nil {
		return nil, err
	}

	accessToken, err := u.generateToken(
		authUserID,
		session.ID.Hex(),
		u.cfg.Token.AccessTokenSecret,
		u.cfg.Token.AccessTokenExpiresIn,
	)
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.generateToken(
		authUserID,
		session.ID.Hex(),
		u.cfg.Token.RefreshTokenSecret,
		u.cfg.Token.RefreshTokenExpiresIn,
	)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := u.sessionRepo.UpdateTokens(ctx, session.ID.Hex(), repository.UpdateTokensParams{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresAt:  now.Add(u.cfg.Token.AccessTokenExpiresIn),
		RefreshTokenExpiresAt: now.Add(u.cfg.Token.RefreshTokenExpiresIn),
	}); err != nil {
		return nil, err
	}

	return &types.Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (u *authUsecase) generateToken(userID, sessionID, secret string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := types.SessionClaims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    u.cfg.Token.Issuer,
			Audience:  jwt.ClaimStrings{u.cfg.Token.Issuer},
		},
	}

	return u.jwtAuth.GenerateToken(claims, secret)
}
