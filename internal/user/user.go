package user

import (
	"context"
	"errors"

	userDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/user"
)

type User = userDatamodel.User

var ErrDuplicateEmail = errors.New("email already registered")

// CreateAttrs are the columns set on insert. A nil Disabled inserts a
// disabled account.
type CreateAttrs struct {
	Email          string
	HashedPassword string
	FirstName      string
	LastName       string
	Permissions    int
	Disabled       *bool
}

type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindActiveByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, attrs CreateAttrs) (*User, error)
	// Update applies a partial update keyed by email and returns the
	// fresh row, or nil when no user has that email.
	Update(ctx context.Context, email string, attrs map[string]interface{}) (*User, error)
}
