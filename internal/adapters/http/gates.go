package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/workledger/authcore/internal/domain"
)

// sessionGateAllowed lists the browser paths reachable without a session.
// The change-password path must stay here: a principal under forced update
// is authenticated but pinned, and must never be locked out of the one flow
// that releases the pin.
var sessionGateAllowed = map[string]struct{}{
	"/login":            {},
	"/logout":           {},
	"/error":            {},
	"/healthz":          {},
	"/readyz":           {},
	"/favicon.ico":      {},
	"/account/password": {},
}

func sessionGateAllows(path string) bool {
	if _, ok := sessionGateAllowed[path]; ok {
		return true
	}
	return strings.HasPrefix(path, "/static/")
}

// rateLimitGate rejects over-quota clients before any credential work runs.
// The key is the trusted client IP, so one abusive client cannot starve the
// login endpoint for everyone behind the same edge.
func (h *Handler) rateLimitGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := h.readIP(r)
		if err := h.limiter.CheckLimit(key); err != nil {
			retryAfter := int(h.limiter.RetryAfter().Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			logHTTPOperationError(r.Context(), "rate_limit_gate", http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", err)
			if strings.HasPrefix(r.URL.Path, "/api/") {
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				return
			}
			http.Error(w, "Too many requests. Please try again shortly.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionGate protects the browser surface. Anonymous visitors go to the
// login form with the destination preserved; stale cookies are told apart
// from no cookie at all so the form can say "session timed out"; a session
// pinned by a pending password update is funneled to the change form.
func (h *Handler) sessionGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionGateAllows(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(h.opts.SessionCookie)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}

		data, err := h.service.ResumeSession(r.Context(), cookie.Value)
		if err != nil {
			if errorIsSessionExpired(err) {
				h.clearSessionCookie(w)
				http.Redirect(w, r, "/login?timeout=true", http.StatusSeeOther)
				return
			}
			logHTTPOperationError(r.Context(), "session_gate", http.StatusInternalServerError, "INTERNAL_ERROR", "session lookup failed", err)
			http.Redirect(w, r, "/error", http.StatusSeeOther)
			return
		}

		if data.PasswordUpdateRequired {
			h.service.SaveRequestedPath(r.Context(), cookie.Value, r.URL.RequestURI())
			http.Redirect(w, r, "/account/password", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeySession, data)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tokenGate protects the API surface. Signature and expiry come from the
// token itself; enabled/locked state is re-checked against the store on
// every request, so revoking an account takes effect immediately.
func (h *Handler) tokenGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "token_gate")
			return
		}

		claims, _, err := h.service.ValidateToken(r.Context(), token)
		if err != nil {
			writeMappedError(r.Context(), w, "token_gate", err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission gates an endpoint on a RESOURCE:ACTION key evaluated
// against the caller's role in the live graph.
func (h *Handler) requirePermission(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFromContext(r.Context())
			if !ok {
				writeMissingBearerError(r.Context(), w, "permission_gate")
				return
			}
			allowed, err := h.service.HasPermission(r.Context(), claims.Role, key)
			if err != nil {
				writeMappedError(r.Context(), w, "permission_gate", err)
				return
			}
			if !allowed {
				logHTTPOperationError(r.Context(), "permission_gate", http.StatusForbidden, "FORBIDDEN", "missing "+key, nil)
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func errorIsSessionExpired(err error) bool {
	return errors.Is(err, domain.ErrSessionExpired) || errors.Is(err, domain.ErrUnauthorized)
}
