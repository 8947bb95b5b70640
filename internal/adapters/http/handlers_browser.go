package http

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/workledger/authcore/internal/application"
	"github.com/workledger/authcore/internal/domain"
	"github.com/workledger/authcore/internal/ports"
)

var loginTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html><head><title>Sign in</title></head><body>
<h1>Sign in</h1>
{{if .Message}}<p class="notice">{{.Message}}</p>{{end}}
<form method="post" action="/login">
  <label>Username <input type="text" name="username" autocomplete="username"></label>
  <label>Password <input type="password" name="password" autocomplete="current-password"></label>
  <input type="hidden" name="next" value="{{.Next}}">
  <button type="submit">Sign in</button>
</form>
</body></html>
`))

var passwordTmpl = template.Must(template.New("password").Parse(`<!DOCTYPE html>
<html><head><title>Change password</title></head><body>
<h1>Change password</h1>
{{if .Message}}<p class="notice">{{.Message}}</p>{{end}}
<form method="post" action="/account/password">
  <label>Current password <input type="password" name="current_password" autocomplete="current-password"></label>
  <label>New password <input type="password" name="new_password" autocomplete="new-password"></label>
  <button type="submit">Change password</button>
</form>
</body></html>
`))

var homeTmpl = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html><head><title>Workledger</title></head><body>
<h1>Welcome, {{.Username}}</h1>
<form method="post" action="/logout"><button type="submit">Sign out</button></form>
</body></html>
`))

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var msg string
	switch {
	case q.Get("locked") == "true":
		msg = "This account is locked. Contact an administrator to unlock it."
	case q.Get("disabled") == "true":
		msg = "This account is disabled."
	case q.Get("error") == "guest_expired":
		msg = "This guest account's password has expired. Contact an administrator."
	case q.Get("error") == "true":
		msg = "Invalid username or password."
	case q.Get("timeout") == "true":
		msg = "Your session timed out. Please sign in again."
	case q.Get("logout") == "true":
		msg = "You have been signed out."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginTmpl.Execute(w, map[string]string{
		"Message": msg,
		"Next":    q.Get("next"),
	})
}

func (h *Handler) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=true", http.StatusSeeOther)
		return
	}

	req := application.LoginRequest{
		Username:      r.PostFormValue("username"),
		Password:      r.PostFormValue("password"),
		IPAddress:     h.readIP(r),
		UserAgent:     r.UserAgent(),
		RequestedPath: r.PostFormValue("next"),
	}

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		http.Redirect(w, r, loginFailureTarget(err), http.StatusSeeOther)
		return
	}

	h.setSessionCookie(w, res.SessionID)
	http.Redirect(w, r, res.RedirectPath, http.StatusSeeOther)
}

// loginFailureTarget maps the rejection to its redirect. Every credential
// failure collapses into the same generic flag; only account-state
// rejections get a distinct one.
func loginFailureTarget(err error) string {
	switch {
	case errors.Is(err, domain.ErrAccountDisabled):
		return "/login?disabled=true"
	case errors.Is(err, domain.ErrAccountLocked):
		return "/login?locked=true"
	case errors.Is(err, domain.ErrGuestPasswordExpired):
		return "/login?error=guest_expired"
	default:
		return "/login?error=true"
	}
}

func (h *Handler) logoutSubmit(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.opts.SessionCookie); err == nil && cookie.Value != "" {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			logHTTPOperationError(r.Context(), "logout", http.StatusInternalServerError, "INTERNAL_ERROR", "logout failed", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login?logout=true", http.StatusSeeOther)
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = homeTmpl.Execute(w, map[string]string{"Username": sess.Username})
}

func (h *Handler) errorPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<!DOCTYPE html><html><body><h1>Something went wrong</h1><p><a href=\"/login\">Back to sign in</a></p></body></html>"))
}

// passwordPage serves the change form. It sits on the gate allow-list, so
// the session is resolved here rather than in the gate; visitors without a
// session are bounced to login with the destination preserved.
func (h *Handler) passwordPage(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.requireSession(w, r); !ok {
		return
	}

	q := r.URL.Query()
	var msg string
	switch {
	case q.Get("expired") == "true":
		msg = "Your password has expired. Choose a new one to continue."
	case q.Get("forced") == "true":
		msg = "An administrator requires you to set a new password."
	case q.Get("error") == "current":
		msg = "The current password you entered is incorrect."
	case q.Get("error") == "policy":
		msg = "The new password does not meet the password policy."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = passwordTmpl.Execute(w, map[string]string{"Message": msg})
}

func (h *Handler) passwordSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID, sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/account/password?error=policy", http.StatusSeeOther)
		return
	}

	err := h.service.ChangePassword(r.Context(), application.ChangePasswordRequest{
		Username:        sess.Username,
		CurrentPassword: r.PostFormValue("current_password"),
		NewPassword:     r.PostFormValue("new_password"),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBadCredentials):
			http.Redirect(w, r, "/account/password?error=current", http.StatusSeeOther)
		case errors.Is(err, domain.ErrInvalidInput):
			http.Redirect(w, r, "/account/password?error=policy", http.StatusSeeOther)
		default:
			logHTTPOperationError(r.Context(), "change_password", http.StatusInternalServerError, "INTERNAL_ERROR", "password change failed", err)
			http.Redirect(w, r, "/error", http.StatusSeeOther)
		}
		return
	}

	target, err := h.service.CompletePasswordUpdate(r.Context(), sessionID)
	if err != nil {
		h.clearSessionCookie(w)
		http.Redirect(w, r, "/login?timeout=true", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (string, *ports.SessionData, bool) {
	cookie, err := r.Cookie(h.opts.SessionCookie)
	if err != nil || cookie.Value == "" {
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
		return "", nil, false
	}
	data, err := h.service.ResumeSession(r.Context(), cookie.Value)
	if err != nil {
		h.clearSessionCookie(w)
		http.Redirect(w, r, "/login?timeout=true", http.StatusSeeOther)
		return "", nil, false
	}
	return cookie.Value, data, true
}
