package auth

import (
	"net/http"

	"github.com/frahmantamala/leaf/internal"
	"github.com/frahmantamala/leaf/internal/permission"
	"github.com/frahmantamala/leaf/pkg/logger"
)

// RequirePermission checks the user's own mask combined with its group masks.
func (m *Middleware) RequirePermission(p permission.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := internal.UserFromContext(r.Context())
			if !ok {
				m.WriteAppError(w, r, internal.ErrCouldNotValidate)
				return
			}

			effective := permission.Effective(u.Permissions, u.GroupMasks()...)
			if !permission.Check(effective, p) {
				logger.From(r.Context()).WarnContext(r.Context(), "access denied: insufficient permissions",
					"user_id", u.ID,
					"required_permission", p.String(),
					"user_permissions", effective)
				m.WriteAppError(w, r, internal.ErrInsufficientPerm)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
