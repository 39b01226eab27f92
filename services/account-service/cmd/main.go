package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/reunitehq/reunite-api/services/account-service/internal/config"
	"github.com/reunitehq/reunite-api/services/account-service/internal/credential"
	"github.com/reunitehq/reunite-api/services/account-service/internal/handler"
	"github.com/reunitehq/reunite-api/services/account-service/internal/notifier"
	"github.com/reunitehq/reunite-api/services/account-service/internal/repository"
	"github.com/reunitehq/reunite-api/services/account-service/internal/usecase"
	"github.com/reunitehq/reunite-api/shared/auth"
	"github.com/reunitehq/reunite-api/shared/mailer"
	"github.com/reunitehq/reunite-api/shared/provider"
	"github.com/reunitehq/reunite-api/shared/statestore"
	"github.com/reunitehq/reunite-api/shared/validator"
)

func main() {
	logger := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", "account-service").
		Logger()

	cfg := config.NewAccountServiceConfig(&logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mongodb")
	}
	db := client.Database(cfg.Mongo.Database)

	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Issuer, cfg.Token.Issuer)

	profileRepo := repository.NewProfileMongoRepository(ctx, &logger, db)
	settingsRepo := repository.NewSettingsMongoRepository(db)
	sessionRepo := repository.NewSessionMongoRepository(db)
	notificationRepo := repository.NewNotificationMongoRepository(db)

	credentialSvc := credential.NewMongoService(ctx, &logger, db, jwtAuth, cfg.Token.AccessTokenSecret)

	smtpMailer := mailer.NewMailer(&logger)
	notify := notifier.New(smtpMailer, notificationRepo, &logger, notifier.Config{
		APIBaseURL:          cfg.APIBaseURL,
		AppPasswordResetURL: cfg.AppPasswordResetURL,
	})

	verificationUsecase := usecase.NewVerificationUsecase(profileRepo, credentialSvc, notify, cfg, &logger)
	passwordResetUsecase := usecase.NewPasswordResetUsecase(profileRepo, credentialSvc, notify, cfg, &logger)
	emailChangeUsecase := usecase.NewEmailChangeUsecase(profileRepo, credentialSvc, notify, cfg, &logger)
	accountLinker := usecase.NewAccountLinker(profileRepo, settingsRepo, credentialSvc, &logger)
	authUsecase := usecase.NewAuthUsecase(
		profileRepo, settingsRepo, sessionRepo, credentialSvc, verificationUsecase, jwtAuth, cfg, &logger,
	)

	googleProvider := provider.NewGoogleOAuthProvider(
		cfg.Google.ClientID,
		cfg.Google.ClientSecret,
		cfg.Google.RedirectURL,
	)

	stateStore := statestore.New(statestore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	payloadValidator, err := validator.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create payload validator")
	}

	h := handler.NewHandler(
		authUsecase,
		verificationUsecase,
		passwordResetUsecase,
		emailChangeUsecase,
		accountLinker,
		googleProvider,
		stateStore,
		payloadValidator,
		jwtAuth,
		cfg,
		&logger,
	)

	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("address", cfg.ServerAddress).Msg("account service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to disconnect mongodb client")
	}

	logger.Info().Msg("account service stopped")
}
