package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/chaikhata/internal/user"
	"github.com/fkhayef/chaikhata/pkg/middleware"
	"github.com/fkhayef/chaikhata/pkg/response"
)

// Handler handles HTTP requests for authentication
type Handler struct {
	service *Service
}

// NewHandler creates a new auth handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for auth endpoints. None of them require a token
// except logout, which reads it directly.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/google", h.Google)
	r.Post("/logout", h.Logout)
	r.Post("/password-reset", h.RequestPasswordReset)
	r.Post("/password-reset/confirm", h.ConfirmPasswordReset)

	return r
}

// writeError maps auth errors onto responses
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrNameRequired):
		response.Validation(w, err.Error())
	case errors.Is(err, user.ErrEmailAlreadyInUse):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenRevoked):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, ErrInvalidResetToken):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrFederatedDisabled):
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", err.Error())
	default:
		slog.ErrorContext(r.Context(), fallback, "error", err)
		response.InternalError(w, fallback)
	}
}

// Register handles POST /auth/register
// @Summary      Create an account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration"
// @Success      201 {object} response.APIResponse{data=AuthResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	session, err := h.service.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, r, err, "Failed to register")
		return
	}

	response.JSON(w, http.StatusCreated, session.ToResponse())
}

// Login handles POST /auth/login
// @Summary      Sign in with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Credentials"
// @Success      200 {object} response.APIResponse{data=AuthResponse}
// @Failure      401 {object} response.APIResponse
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	session, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err, "Failed to sign in")
		return
	}

	response.JSON(w, http.StatusOK, session.ToResponse())
}

// Google handles POST /auth/google
// @Summary      Sign in with a Google ID token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body GoogleLoginRequest true "Google ID token"
// @Success      200 {object} response.APIResponse{data=AuthResponse}
// @Failure      401 {object} response.APIResponse
// @Failure      501 {object} response.APIResponse
// @Router       /auth/google [post]
func (h *Handler) Google(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if err := response.Decode(r, &req); err != nil || req.IDToken == "" {
		response.BadRequest(w, "Invalid request body")
		return
	}

	session, err := h.service.SignInFederated(r.Context(), req.IDToken)
	if err != nil {
		writeError(w, r, err, "Failed to sign in")
		return
	}

	response.JSON(w, http.StatusOK, session.ToResponse())
}

// Logout handles POST /auth/logout
// @Summary      Sign out
// @Description  Revokes the bearer token.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse
// @Failure      401 {object} response.APIResponse
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		response.Unauthorized(w, "Authorization header required")
		return
	}

	if err := h.service.SignOut(r.Context(), token); err != nil {
		writeError(w, r, err, "Failed to sign out")
		return
	}

	response.Message(w, http.StatusOK, "Signed out")
}

// RequestPasswordReset handles POST /auth/password-reset
// @Summary      Request a password reset
// @Description  Always succeeds, whether or not the address has an account.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body PasswordResetRequest true "Account email"
// @Success      202 {object} response.APIResponse
// @Router       /auth/password-reset [post]
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.SendPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err, "Failed to send password reset")
		return
	}

	response.Message(w, http.StatusAccepted, "If the account exists, a reset link has been sent")
}

// ConfirmPasswordReset handles POST /auth/password-reset/confirm
// @Summary      Set a new password with a reset token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body PasswordResetConfirmRequest true "Reset token and new password"
// @Success      200 {object} response.APIResponse
// @Failure      400 {object} response.APIResponse
// @Router       /auth/password-reset/confirm [post]
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetConfirmRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, err, "Failed to reset password")
		return
	}

	response.Message(w, http.StatusOK, "Password updated")
}
