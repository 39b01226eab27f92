// Package credential implements the identity/credential backend the
// verification workflow talks to. The workflow itself only depends on the
// Service interface; sessions are managed elsewhere.
package credential

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUserExists         = errors.New("credential user already exists")
	ErrUserNotFound       = errors.New("credential user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidAccessToken = errors.New("invalid access token")
)

// UpdateCredentialParams defines the administrative attributes that can be
// rewritten on a credential user. Only non-nil fields are applied.
type UpdateCredentialParams struct {
	Password       *string
	Email          *string
	EmailConfirmed *bool
}

// Identity is the credential-store view of a signed-in user.
type Identity struct {
	UserID string
	Email  string
}

// Service is the administrative surface of the credential backend.
type Service interface {
	// CreateUser registers a new credential user. An empty password creates
	// an OAuth-only user with no password credential.
	CreateUser(ctx context.Context, email, password string) (string, error)

	// SignIn verifies a password credential and returns the user id.
	SignIn(ctx context.Context, email, password string) (string, error)

	// UpdateCredential rewrites credential attributes administratively.
	UpdateCredential(ctx context.Context, id string, params UpdateCredentialParams) error

	// GetUserByToken resolves a session access token to its identity.
	GetUserByToken(ctx context.Context, accessToken string) (*Identity, error)

	// GetOrCreateOAuthUser resolves an OAuth (provider, subject) pair to a
	// credential user id. On first sign-in the identity attaches to the
	// existing credential user holding the same email when the provider has
	// verified the address; otherwise a fresh passwordless user is created.
	GetOrCreateOAuthUser(ctx context.Context, provider, subject, email string, emailVerified bool) (string, error)
}

// claimsUserID extracts the user id claim from validated session claims.
func claimsUserID(claims jwt.MapClaims) (string, bool) {
	id, ok := claims["user_id"].(string)
	return id, ok && id != ""
}
