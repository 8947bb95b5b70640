package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/workledger/authcore/internal/application"
	"github.com/workledger/authcore/internal/ratelimit"
)

// Options holds the edge-facing knobs of the HTTP adapter.
type Options struct {
	// SessionCookie is the name of the opaque browser session cookie.
	SessionCookie string
	// ClientIPHeader is the single trusted proxy header for the real
	// client address, e.g. CF-Connecting-IP. Empty disables header trust.
	ClientIPHeader string
	// SecureCookies marks session cookies Secure; off only for local dev.
	SecureCookies bool
}

// Handler is the HTTP adapter entrypoint for the auth core.
// Keeping only application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
	limiter *ratelimit.RateLimiter
	opts    Options
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service, limiter *ratelimit.RateLimiter, opts Options) *Handler {
	if opts.SessionCookie == "" {
		opts.SessionCookie = "wl_session"
	}
	return &Handler{service: service, limiter: limiter, opts: opts}
}

// NewRouter registers the route tree and middleware stack. The order is
// fixed: request-id, recover, logging, rate limit, then the surface gates.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(handler.rateLimitGate)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/token", handler.apiToken)
		r.Get("/auth/jwks", handler.jwks)

		r.Group(func(r chi.Router) {
			r.Use(handler.tokenGate)
			r.Get("/me", handler.me)
			r.Get("/login-history", handler.loginHistory)

			r.Route("/admin", func(r chi.Router) {
				r.With(handler.requirePermission("USER:CREATE")).
					Post("/users", handler.adminCreateUser)
				r.With(handler.requirePermission("USER:UNLOCK")).
					Post("/users/{username}/unlock", handler.adminUnlock)
				r.With(handler.requirePermission("USER:FORCE_PASSWORD_UPDATE")).
					Post("/users/{username}/force-password-update", handler.adminForcePasswordUpdate)
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(handler.sessionGate)
		r.Get("/", handler.home)
		r.Get("/login", handler.loginPage)
		r.Post("/login", handler.loginSubmit)
		r.Post("/logout", handler.logoutSubmit)
		r.Get("/error", handler.errorPage)
		r.Get("/account/password", handler.passwordPage)
		r.Post("/account/password", handler.passwordSubmit)
	})

	return r
}
