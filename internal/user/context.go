package user

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fkhayef/chaikhata/pkg/middleware"
	"github.com/fkhayef/chaikhata/pkg/response"
)

type contextKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the profile loaded by Middleware.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(contextKey{}).(*User)
	return u, ok && u != nil
}

// Middleware loads the authenticated caller's profile into the request
// context. It must run after middleware.Authenticate.
func Middleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := middleware.GetUserID(r.Context())
			if !ok {
				response.Unauthorized(w, "Authentication required")
				return
			}

			u, err := service.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, ErrUserNotFound) {
					response.Unauthorized(w, "Account no longer exists")
					return
				}
				slog.ErrorContext(r.Context(), "Failed to load caller profile", "user_id", userID, "error", err)
				response.InternalError(w, "Failed to load profile")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
