package auth

import "github.com/fkhayef/chaikhata/internal/user"

// RegisterRequest represents the request body for creating an account
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// LoginRequest represents the request body for password sign-in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleLoginRequest carries a Google ID token
type GoogleLoginRequest struct {
	IDToken string `json:"idToken"`
}

// PasswordResetRequest asks for a reset link
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest sets a new password with a reset token
type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// AuthResponse is returned by every sign-in flow
type AuthResponse struct {
	Token     string             `json:"token"`
	ExpiresAt string             `json:"expiresAt"`
	User      *user.UserResponse `json:"user"`
}

// ToResponse converts a Session to an AuthResponse DTO
func (s *Session) ToResponse() *AuthResponse {
	return &AuthResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"),
		User:      s.User.ToResponse(),
	}
}
