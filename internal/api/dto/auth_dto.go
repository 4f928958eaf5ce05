package dto

import "time"

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// RegisterRequest payload for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// ForgotPasswordRequest payload for POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest payload for POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// UserPayload is the profile returned alongside tokens.
type UserPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token string      `json:"token"`
	User  UserPayload `json:"user"`
}

// RefreshResponse carries a renewed token.
type RefreshResponse struct {
	Token string `json:"token"`
}

// ValidateResponse confirms a token and returns the current profile.
type ValidateResponse struct {
	User UserPayload `json:"user"`
}

// Receipt acknowledges a stateless request. ResetToken is only filled by the
// development identity service.
type Receipt struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
}

// ErrorBody mirrors the error envelope written by the error middleware.
type ErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SessionResponse describes the portal's current session for pages and scripts.
type SessionResponse struct {
	Authenticated bool           `json:"authenticated"`
	State         string         `json:"state"`
	Initializing  bool           `json:"initializing"`
	Loading       bool           `json:"loading"`
	User          *UserPayload   `json:"user,omitempty"`
	Permissions   []string       `json:"permissions"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	Warning       *ExpiryWarning `json:"warning,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// ExpiryWarning is the renew-or-exit banner content.
type ExpiryWarning struct {
	RemainingSeconds int64  `json:"remaining_seconds"`
	Message          string `json:"message"`
}
