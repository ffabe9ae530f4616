package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	userDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/user"
	"golang.org/x/crypto/bcrypt"
)

// UserFinder is the slice of the user repository the auth service needs.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	FindActiveByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
}

// Service is the main auth service with dependencies
type Service struct {
	users         UserFinder
	tokens        *JWTTokenGenerator
	confirmations *ConfirmationSigner
	bcryptCost    int
	logger        *slog.Logger
}

// NewService creates a new auth service
func NewService(users UserFinder, tokens *JWTTokenGenerator, confirmations *ConfirmationSigner, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:         users,
		tokens:        tokens,
		confirmations: confirmations,
		bcryptCost:    bcryptCost,
		logger:        logger,
	}
}

func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

// Authenticate looks the user up among active accounts only, so a disabled
// account and a wrong password both end in ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*userDatamodel.User, error) {
	u, err := s.users.FindActiveByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil || !VerifyPassword(password, u.HashedPassword) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) IssueAccessToken(subject string, ttl time.Duration) (string, error) {
	return s.tokens.GenerateAccessToken(subject, ttl)
}

func (s *Service) VerifyAccessToken(token string) (string, error) {
	return s.tokens.ValidateToken(token)
}

func (s *Service) IssueConfirmationToken(email string) (string, error) {
	return s.confirmations.Sign(email)
}

// ConfirmToken returns the email a confirmation or reset token was issued for.
func (s *Service) ConfirmToken(token string, maxAge time.Duration) (string, error) {
	return s.confirmations.Verify(token, maxAge)
}

// CurrentUser resolves the bearer token to its user. Disabled users are
// returned as well; RequireActive decides what to do with them.
func (s *Service) CurrentUser(ctx context.Context, token string) (*userDatamodel.User, error) {
	email, err := s.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, ErrInvalidToken
	}
	return u, nil
}
