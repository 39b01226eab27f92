package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// AccountServiceConfig holds every setting the account service needs. It is
// parsed once at startup and injected explicitly; a missing required secret
// fails the process immediately instead of surfacing per-request.
type AccountServiceConfig struct {
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:":8080"`

	// APIBaseURL is the public base URL of this service, embedded in
	// link-based confirmation emails.
	APIBaseURL string `env:"API_BASE_URL"`

	// AppBaseURL is the web app origin that redirect-based flows land on.
	AppBaseURL string `env:"APP_BASE_URL"`

	// AppPasswordResetURL is the web app page where a reset link lands.
	AppPasswordResetURL string `env:"APP_PASSWORD_RESET_URL"`

	Mongo        MongoConfig        `envPrefix:"MONGO_"`
	Redis        RedisConfig        `envPrefix:"REDIS_"`
	Token        TokenConfig        `envPrefix:"TOKEN_"`
	Verification VerificationConfig `envPrefix:"VERIFICATION_"`
	Google       GoogleConfig       `envPrefix:"GOOGLE_"`
}

// MongoConfig holds the database connection settings.
type MongoConfig struct {
	URI      string `env:"URI"`
	Database string `env:"DATABASE" envDefault:"reunite"`
}

// RedisConfig holds the redis connection settings for the OAuth state store.
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// TokenConfig holds session JWT settings.
type TokenConfig struct {
	Issuer                string        `env:"ISSUER" envDefault:"reunite-api"`
	AccessTokenSecret     string        `env:"ACCESS_TOKEN_SECRET"`
	AccessTokenExpiresIn  time.Duration `env:"ACCESS_TOKEN_EXPIRES_IN" envDefault:"15m"`
	RefreshTokenSecret    string        `env:"REFRESH_TOKEN_SECRET"`
	RefreshTokenExpiresIn time.Duration `env:"REFRESH_TOKEN_EXPIRES_IN" envDefault:"720h"`
}

// VerificationConfig holds the verification workflow's lifetimes.
type VerificationConfig struct {
	CodeExpiresIn          time.Duration `env:"CODE_EXPIRES_IN" envDefault:"24h"`
	ResetTokenExpiresIn    time.Duration `env:"RESET_TOKEN_EXPIRES_IN" envDefault:"24h"`
	ChangeTokenExpiresIn   time.Duration `env:"CHANGE_TOKEN_EXPIRES_IN" envDefault:"24h"`
	EmailChangeMinInterval time.Duration `env:"EMAIL_CHANGE_MIN_INTERVAL" envDefault:"24h"`
	OAuthStateTTL          time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
}

// GoogleConfig holds the Google OAuth client settings.
type GoogleConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// NewAccountServiceConfig parses the configuration from the environment and
// fails fast on missing required values.
func NewAccountServiceConfig(logger *zerolog.Logger) *AccountServiceConfig {
	cfg, err := env.ParseAs[AccountServiceConfig]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate account service configuration")
	}

	return &cfg
}

func (c *AccountServiceConfig) validate() error {
	required := map[string]string{
		"API_BASE_URL":               c.APIBaseURL,
		"APP_BASE_URL":               c.AppBaseURL,
		"APP_PASSWORD_RESET_URL":     c.AppPasswordResetURL,
		"MONGO_URI":                  c.Mongo.URI,
		"TOKEN_ACCESS_TOKEN_SECRET":  c.Token.AccessTokenSecret,
		"TOKEN_REFRESH_TOKEN_SECRET": c.Token.RefreshTokenSecret,
		"GOOGLE_CLIENT_ID":           c.Google.ClientID,
		"GOOGLE_CLIENT_SECRET":       c.Google.ClientSecret,
		"GOOGLE_REDIRECT_URL":        c.Google.RedirectURL,
	}

	for name, value := range required {
		if value == "" {
			return fmt.Errorf("missing %s environment variable", name)
		}
	}

	return nil
}
