package payload

type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"       validate:"required"`
	UserID      string `json:"userId"      validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type ChangeEmailRequest struct {
	UserID   string `json:"userId"   validate:"required"`
	NewEmail string `json:"newEmail" validate:"required,email"`
}

type ProfileResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	HasPassword   bool   `json:"hasPassword"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ValidateTokenResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}
