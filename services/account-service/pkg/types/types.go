// Package types holds the account service's shared wire types.
package types

import "github.com/golang-jwt/jwt/v5"

// Tokens is the access/refresh token pair issued for a session.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionClaims are the claims embedded in session access and refresh tokens.
type SessionClaims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}
