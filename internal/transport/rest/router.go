package rest

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/frahmantamala/leaf/api"
	"github.com/frahmantamala/leaf/internal/auth"
	"github.com/frahmantamala/leaf/internal/permission"
	"github.com/frahmantamala/leaf/internal/threat"
	"github.com/frahmantamala/leaf/internal/transport/middleware"
	"github.com/frahmantamala/leaf/internal/transport/swagger"
	"github.com/frahmantamala/leaf/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

type Routes struct {
	Auth    *auth.Middleware
	Health  *HealthHandler
	Users   *user.Handler
	Threats *threat.Handler
	// Media serves stored images under MediaBaseURL. Nil when images live
	// in object storage.
	Media          http.Handler
	MediaBaseURL   string
	AllowedOrigins string
}

func RegisterAllRoutes(router *chi.Mux, routes Routes, logger *slog.Logger) {
	router.Use(middleware.CORS(routes.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	router.Get(swagger.DocumentPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Document)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Get("/health", routes.Health.Health)
	router.Get("/ping", routes.Health.Ping)

	if routes.Media != nil {
		prefix := mediaPrefix(routes.MediaBaseURL)
		router.Handle(prefix+"/*", http.StripPrefix(prefix, routes.Media))
	}

	mw := routes.Auth
	router.Route("/users", func(r chi.Router) {
		r.Post("/token", routes.Users.Token)
		r.Post("/register", routes.Users.Register)
		r.Post("/confirm", routes.Users.Confirm)
		r.Post("/password-reset", routes.Users.PasswordReset)
		r.Post("/password-reset-confirm", routes.Users.PasswordResetConfirm)

		r.Group(func(pr chi.Router) {
			pr.Use(mw.Authenticate, mw.RequireActive)
			pr.Get("/me", routes.Users.Me)
			pr.Put("/user-image", routes.Users.UpdateImage)
			pr.With(mw.RequirePermission(permission.GrantPermissions)).
				Post("/{email}/permissions/grant", routes.Users.GrantPermissions)
			pr.With(mw.RequirePermission(permission.RevokePermissions)).
				Post("/{email}/permissions/revoke", routes.Users.RevokePermissions)
		})
	})

	router.Route("/threats", func(r chi.Router) {
		r.Use(mw.Authenticate, mw.RequireActive)

		read := r.With(mw.RequirePermission(permission.ReadThreats))
		modify := r.With(mw.RequirePermission(permission.ModifyThreats))

		read.Get("/", routes.Threats.GetThreats)
		modify.Post("/", routes.Threats.CreateThreat)
		read.Get("/categories", routes.Threats.GetCategories)
		modify.Post("/categories", routes.Threats.CreateCategory)
		read.Get("/{id}", routes.Threats.GetThreat)
	})
}

// mediaPrefix is the path part of the media base URL, "/media" by default.
func mediaPrefix(baseURL string) string {
	p := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		p = u.Path
	}
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return "/media"
	}
	return p
}
