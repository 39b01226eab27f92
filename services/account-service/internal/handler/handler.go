// Package handler exposes the account service's HTTP/JSON API.
package handler

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/reunitehq/reunite-api/services/account-service/internal/config"
	"github.com/reunitehq/reunite-api/services/account-service/internal/usecase"
	"github.com/reunitehq/reunite-api/shared/auth"
	"github.com/reunitehq/reunite-api/shared/middleware"
	"github.com/reunitehq/reunite-api/shared/provider"
	"github.com/reunitehq/reunite-api/shared/statestore"
	"github.com/reunitehq/reunite-api/shared/validator"
)

// Handler carries the dependencies shared by all HTTP endpoints.
type Handler struct {
	authUsecase          usecase.AuthUsecase
	verificationUsecase  usecase.VerificationUsecase
	passwordResetUsecase usecase.PasswordResetUsecase
	emailChangeUsecase   usecase.EmailChangeUsecase
	accountLinker        usecase.AccountLinker
	googleProvider       *provider.GoogleOAuthProvider
	stateStore           *statestore.Store
	validator            *validator.Validator
	jwtAuth              auth.JWTAuthenticator
	cfg                  *config.AccountServiceConfig
	logger               *zerolog.Logger
}

func NewHandler(
	authUsecase usecase.AuthUsecase,
	verificationUsecase usecase.VerificationUsecase,
	passwordResetUsecase usecase.PasswordResetUsecase,
	emailChangeUsecase usecase.EmailChangeUsecase,
	accountLinker usecase.AccountLinker,
	googleProvider *provider.GoogleOAuthProvider,
	stateStore *statestore.Store,
	validator *validator.Validator,
	jwtAuth auth.JWTAuthenticator,
	cfg *config.AccountServiceConfig,
	logger *zerolog.Logger,
) *Handler {
	return &Handler{
		authUsecase:          authUsecase,
		verificationUsecase:  verificationUsecase,
		passwordResetUsecase: passwordResetUsecase,
		emailChangeUsecase:   emailChangeUsecase,
		accountLinker:        accountLinker,
		googleProvider:       googleProvider,
		stateStore:           stateStore,
		validator:            validator,
		jwtAuth:              jwtAuth,
		cfg:                  cfg,
		logger:               logger,
	}
}

// Routes assembles the service router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Get("/me", h.Me)

		r.Post("/verify/resend", h.ResendVerification)
		r.Get("/verify/confirm", h.ConfirmVerification)

		r.Post("/password/forgot", h.ForgotPassword)
		r.Get("/password/validate", h.ValidateResetToken)
		r.Post("/password/reset", h.ResetPassword)

		r.With(middleware.RequireJWT(h.jwtAuth, h.cfg.Token.AccessTokenSecret)).
			Post("/email/change", h.ChangeEmail)
		r.Get("/email/confirm", h.ConfirmEmailChange)

		r.Get("/oauth/google", h.GoogleRedirect)
		r.Get("/oauth/google/callback", h.GoogleCallback)
	})

	return r
}
