package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/leaf/internal"
	"github.com/frahmantamala/leaf/internal/auth"
	"github.com/frahmantamala/leaf/internal/core/events"
	"github.com/frahmantamala/leaf/internal/media"
	"github.com/frahmantamala/leaf/internal/permission"
)

type Authenticator interface {
	HashPassword(password string) (string, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	IssueAccessToken(subject string, ttl time.Duration) (string, error)
	IssueConfirmationToken(email string) (string, error)
	ConfirmToken(token string, maxAge time.Duration) (string, error)
}

type ImageStore interface {
	Flush(ctx context.Context, userID int64) error
	Save(ctx context.Context, userID int64, up *media.Upload) (string, error)
	Sizes() *media.Sizes
}

type ResizeQueue interface {
	ResizeImage(ctx context.Context, key string, sizes []media.Dimension) error
}

type Publisher interface {
	PublishSync(ctx context.Context, event events.Event) error
}

type ServiceConfig struct {
	AccessTokenTTL     time.Duration
	ConfirmationMaxAge time.Duration
}

type Service struct {
	repo   Repository
	auth   Authenticator
	images ImageStore
	resize ResizeQueue
	events Publisher
	cfg    ServiceConfig
	logger *slog.Logger
}

func NewService(repo Repository, authenticator Authenticator, images ImageStore, resize ResizeQueue, publisher Publisher, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		auth:   authenticator,
		images: images,
		resize: resize,
		events: publisher,
		cfg:    cfg,
		logger: logger,
	}
}

// Login returns the authenticated user and a fresh access token for it.
func (s *Service) Login(ctx context.Context, username, password string) (*User, string, error) {
	u, err := s.auth.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, "", internal.ErrIncorrectCredentials
		}
		return nil, "", err
	}
	token, err := s.auth.IssueAccessToken(u.Email, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("issue access token: %w", err)
	}
	return u, token, nil
}

// Register stores a disabled account and asks for the confirmation mail.
// Mail failures are logged only.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	existing, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		return nil, internal.ErrEmailTaken
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.repo.Create(ctx, CreateAttrs{
		Email:          req.Email,
		HashedPassword: hash,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, internal.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.auth.IssueConfirmationToken(u.Email)
	if err != nil {
		s.logger.Error("failed to issue confirmation token", "user", u.Email, "error", err)
		return u, nil
	}
	if err := s.events.PublishSync(ctx, events.NewUserRegisteredEvent(u.ID, u.Email, token)); err != nil {
		s.logger.Error("failed to queue confirmation mail", "user", u.Email, "error", err)
	}
	return u, nil
}

func (s *Service) redeem(key string) (string, error) {
	email, err := s.auth.ConfirmToken(key, s.cfg.ConfirmationMaxAge)
	if err != nil {
		return "", internal.ErrInvalidToken.WithCause(err)
	}
	return email, nil
}

// Confirm activates the account the key was issued for.
func (s *Service) Confirm(ctx context.Context, key string) (*User, error) {
	email, err := s.redeem(key)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.Update(ctx, email, map[string]interface{}{"disabled": false})
	if err != nil {
		return nil, fmt.Errorf("activate user: %w", err)
	}
	if u == nil {
		return nil, internal.ErrInvalidToken
	}
	return u, nil
}

// RequestPasswordReset queues the reset mail for active accounts. Unknown or
// disabled emails succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.repo.FindActiveByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		s.logger.Debug("password reset for unknown or inactive account")
		return nil
	}

	token, err := s.auth.IssueConfirmationToken(u.Email)
	if err != nil {
		s.logger.Error("failed to issue reset token", "user", u.Email, "error", err)
		return nil
	}
	if err := s.events.PublishSync(ctx, events.NewPasswordResetRequestedEvent(u.ID, u.Email, token)); err != nil {
		s.logger.Error("failed to queue password reset mail", "user", u.Email, "error", err)
	}
	return nil
}

func (s *Service) ConfirmPasswordReset(ctx context.Context, key, newPassword string) (*User, error) {
	email, err := s.redeem(key)
	if err != nil {
		return nil, err
	}
	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.repo.Update(ctx, email, map[string]interface{}{"hashed_password": hash})
	if err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	if u == nil {
		return nil, internal.ErrInvalidToken
	}
	return u, nil
}

// UpdateImage replaces the user's profile image and queues the resize of
// every configured variant.
func (s *Service) UpdateImage(ctx context.Context, u *User, data []byte) (*User, error) {
	up, err := media.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := s.images.Flush(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("flush images: %w", err)
	}
	key, err := s.images.Save(ctx, u.ID, up)
	if err != nil {
		return nil, err
	}
	if err := s.resize.ResizeImage(ctx, key, s.images.Sizes().Variants()); err != nil {
		s.logger.Error("failed to queue image resize", "user", u.Email, "key", key, "error", err)
	}

	updated, err := s.repo.Update(ctx, u.Email, map[string]interface{}{"profile_image": up.Name})
	if err != nil {
		return nil, fmt.Errorf("update profile image: %w", err)
	}
	if updated == nil {
		return nil, internal.ErrUserNotFound
	}
	return updated, nil
}

func (s *Service) GrantPermissions(ctx context.Context, email string, names []string) (*User, error) {
	return s.changePermissions(ctx, email, names, permission.Grant)
}

func (s *Service) RevokePermissions(ctx context.Context, email string, names []string) (*User, error) {
	return s.changePermissions(ctx, email, names, permission.Revoke)
}

func (s *Service) changePermissions(ctx context.Context, email string, names []string, apply func(mask, bits int) int) (*User, error) {
	bits, err := permission.Mask(names...)
	if err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeUnknownPerm)
	}
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, internal.ErrUserNotFound
	}
	mask := apply(u.Permissions, bits)
	if mask == u.Permissions {
		return u, nil
	}
	updated, err := s.repo.Update(ctx, email, map[string]interface{}{"permissions": mask})
	if err != nil {
		return nil, fmt.Errorf("update permissions: %w", err)
	}
	return updated, nil
}
