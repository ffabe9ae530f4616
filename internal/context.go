package internal

import (
	"context"
	"time"

	userDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/user"
)

type ctxKey string

const ContextUserKey ctxKey = "user"

// UserFromContext returns the user resolved from the bearer token.
func UserFromContext(ctx context.Context) (*userDatamodel.User, bool) {
	if ctx == nil {
		return nil, false
	}
	u, ok := ctx.Value(ContextUserKey).(*userDatamodel.User)
	return u, ok && u != nil
}

func ContextWithUser(ctx context.Context, u *userDatamodel.User) context.Context {
	return context.WithValue(ctx, ContextUserKey, u)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
