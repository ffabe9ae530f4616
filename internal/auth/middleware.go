package auth

import (
	"errors"
	"net/http"

	"github.com/frahmantamala/leaf/internal"
	"github.com/frahmantamala/leaf/internal/transport"
	"github.com/frahmantamala/leaf/pkg/logger"
)

type Middleware struct {
	*transport.BaseHandler
	service *Service
}

func NewMiddleware(base *transport.BaseHandler, service *Service) *Middleware {
	return &Middleware{BaseHandler: base, service: service}
}

// Authenticate resolves the bearer token into the request user.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.ExtractTokenFromHeader(r)
		if token == "" {
			m.WriteAppError(w, r, internal.ErrCouldNotValidate)
			return
		}

		u, err := m.service.CurrentUser(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
				m.WriteAppError(w, r, internal.ErrCouldNotValidate)
				return
			}
			m.WriteAppError(w, r, err)
			return
		}

		ctx := internal.ContextWithUser(r.Context(), u)
		if l, ok := logger.FromContext(ctx); ok {
			ctx = logger.NewContext(ctx, l.With("user", u.Email))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActive rejects disabled users. It must run after Authenticate.
func (m *Middleware) RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := internal.UserFromContext(r.Context())
		if !ok {
			m.WriteAppError(w, r, internal.ErrCouldNotValidate)
			return
		}
		if u.Disabled {
			m.WriteAppError(w, r, internal.ErrInactiveUser)
			return
		}
		next.ServeHTTP(w, r)
	})
}
