// Package auth owns account lifecycle: registration, password and Google
// sign-in, sign-out and password reset.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fkhayef/chaikhata/internal/events"
	"github.com/fkhayef/chaikhata/internal/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidEmail       = errors.New("a valid email is required")
	ErrNameRequired       = errors.New("display name is required")
)

const (
	minPasswordLength    = 8
	defaultFederatedName = "User"
)

// UserStore is the profile persistence auth needs.
type UserStore interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// TokenStore persists sign-outs and reset tokens. *Repository implements it.
type TokenStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	CreateReset(ctx context.Context, token, userID string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, token, hash string, now time.Time) (string, error)
}

// Session is a signed-in identity with its bearer token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *user.User
}

// Service handles authentication
type Service struct {
	users     UserStore
	tokens    TokenStore
	jwt       *JWTManager
	verifier  IdentityVerifier
	publisher events.Publisher
	resetTTL  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates an auth service. verifier may be nil, which disables
// federated sign-in.
func NewService(users UserStore, tokens TokenStore, jwt *JWTManager, verifier IdentityVerifier,
	publisher events.Publisher, resetTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:     users,
		tokens:    tokens,
		jwt:       jwt,
		verifier:  verifier,
		publisher: publisher,
		resetTTL:  resetTTL,
		logger:    logger,
		now:       time.Now,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrWeakPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *Service) session(u *user.User) (*Session, error) {
	token, expiresAt, err := s.jwt.Generate(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

// Register creates an account and its profile. The profile starts with no
// group, the user role and no permissions.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, ErrNameRequired
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &user.User{
		Name:         displayName,
		Email:        email,
		PasswordHash: hashed,
		Provider:     user.ProviderPassword,
		Role:         user.RoleUser,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Account registered", "user_id", u.ID)
	return s.session(u)
}

// SignIn checks email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if u == nil || u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.session(u)
}

// SignInFederated signs in with a provider ID token, creating the profile on
// first use.
func (s *Service) SignInFederated(ctx context.Context, idToken string) (*Session, error) {
	if s.verifier == nil {
		return nil, ErrFederatedDisabled
	}

	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		name := strings.TrimSpace(identity.Name)
		if name == "" {
			name = defaultFederatedName
		}
		u = &user.User{
			Name:     name,
			Email:    strings.ToLower(identity.Email),
			Provider: user.ProviderGoogle,
			Role:     user.RoleUser,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "Account created from federated sign-in", "user_id", u.ID)
	}

	return s.session(u)
}

// SignOut revokes token until it would have expired.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return err
	}
	return s.tokens.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// ValidateToken resolves a bearer token to its user ID, rejecting signed-out
// tokens.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return "", err
	}

	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", ErrTokenRevoked
	}
	return claims.UserID, nil
}

// SendPasswordReset issues a reset token and publishes it for delivery.
// Unknown addresses succeed silently.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if u == nil {
		s.logger.DebugContext(ctx, "Password reset for unknown email")
		return nil
	}

	token := uuid.NewString()
	expiresAt := s.now().Add(s.resetTTL)
	if err := s.tokens.CreateReset(ctx, token, u.ID, expiresAt); err != nil {
		return err
	}

	payload := events.PasswordResetPayload{
		UserID:    u.ID,
		Email:     u.Email,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	if err := s.publisher.Publish(ctx, events.PasswordResetRequested, payload); err != nil {
		return fmt.Errorf("failed to send password reset: %w", err)
	}
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	hashed, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	userID, err := s.tokens.ResetPassword(ctx, token, hashed, s.now())
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Password reset", "user_id", userID)
	return nil
}
