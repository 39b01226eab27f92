package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reunitehq/reunite-api/shared/auth"
)

type contextKey struct{}

// UserClaimsKey is the request context key under which validated session
// claims are stored.
var UserClaimsKey = contextKey{}

// RequireJWT validates the Authorization bearer token on every request and
// stores the parsed claims in the request context. Requests without a valid
// token are rejected with 401.
func RequireJWT(jwtAuth auth.JWTAuthenticator, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := BearerToken(r)
			if !ok {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			claims := jwt.MapClaims{}
			if _, err := jwtAuth.ValidateTokenWithClaims(tokenStr, secret, claims); err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext retrieves the session claims stored by RequireJWT.
func ClaimsFromContext(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(jwt.MapClaims)
	return claims, ok
}

// BearerToken extracts the token from a Bearer authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	return parts[1], true
}
