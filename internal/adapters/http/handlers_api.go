package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/workledger/authcore/internal/application"
)

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// apiToken exchanges credentials for a signed bearer token. Expired or
// force-flagged passwords cannot be parked on an API token; the caller is
// sent to the browser flow to change the password first.
func (h *Handler) apiToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "issue_token", err)
		return
	}

	res, err := h.service.IssueToken(r.Context(), application.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		IPAddress: h.readIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeMappedError(r.Context(), w, "issue_token", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) jwks(w http.ResponseWriter, r *http.Request) {
	keys, err := h.service.PublicJWKs()
	if err != nil {
		writeMappedError(r.Context(), w, "jwks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "me")
		return
	}
	profile, err := h.service.Profile(r.Context(), claims.Username)
	if err != nil {
		writeMappedError(r.Context(), w, "me", err)
		return
	}
	writeSuccess(w, http.StatusOK, profile)
}

func (h *Handler) loginHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "login_history")
		return
	}
	q := application.LoginHistoryQuery{
		Page:  parseIntDefault(r.URL.Query().Get("page"), 1),
		Limit: parseIntDefault(r.URL.Query().Get("limit"), 20),
	}
	items, err := h.service.ListLoginHistory(r.Context(), claims.Username, q)
	if err != nil {
		writeMappedError(r.Context(), w, "login_history", err)
		return
	}
	writeSuccess(w, http.StatusOK, items)
}

func (h *Handler) adminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req application.CreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_user", err)
		return
	}
	res, err := h.service.CreateUser(r.Context(), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeMappedError(r.Context(), w, "create_user", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) adminUnlock(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := h.service.UnlockAccount(r.Context(), username); err != nil {
		writeMappedError(r.Context(), w, "unlock_account", err)
		return
	}
	writeMessage(w, http.StatusOK, "account unlocked")
}

func (h *Handler) adminForcePasswordUpdate(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := h.service.ForcePasswordUpdate(r.Context(), username); err != nil {
		writeMappedError(r.Context(), w, "force_password_update", err)
		return
	}
	writeMessage(w, http.StatusOK, "password update required on next login")
}
