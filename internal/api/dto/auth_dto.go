package dto

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenPairResponse carries an access/refresh pair.
type TokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// VerifyTokenRequest payload for POST /auth/verify_token.
type VerifyTokenRequest struct {
	APIToken string `json:"api_token" validate:"required"`
}

// RefreshRequest payload for refresh and blacklist.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// ForgotPasswordRequest payload for initiating reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPasswordResponse reports whether a code was sent.
type ForgotPasswordResponse struct {
	Result bool `json:"result"`
}

// ResetPasswordRequest payload for confirming reset with a mailed code.
type ResetPasswordRequest struct {
	Code     string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required"`
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}
