package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/workledger/authcore/internal/domain"
	"github.com/workledger/authcore/internal/ports"
)

// Authenticate runs the credential check in its fixed order: load, disabled,
// locked, password compare, guest expiry. It has no side effects; counters
// and audit records belong to the login flows. The loaded principal is
// returned even alongside an error so callers can attribute the failure.
func (s *Service) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, domain.ErrBadCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrBadCredentials
		}
		return domain.User{}, fmt.Errorf("load principal: %w", err)
	}

	if !user.Enabled {
		return user, domain.ErrAccountDisabled
	}
	if user.AccountLocked {
		return user, domain.ErrAccountLocked
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return user, domain.ErrBadCredentials
	}
	// Guest expiry is checked only after the password verifies, so a wrong
	// password on an expired guest account never leaks expiry state.
	if user.IsGuest() && user.PasswordExpired(s.nowFn()) {
		return user, domain.ErrGuestPasswordExpired
	}

	return user, nil
}

// Login is the browser flow: authenticate, apply the lockout state machine,
// audit, establish a server-side session, and pick the post-login redirect.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return LoginResult{}, s.handleLoginFailure(ctx, user, req, err)
	}

	if err := s.completeSuccess(ctx, user, req); err != nil {
		return LoginResult{}, err
	}

	expired := user.PasswordExpired(s.nowFn())
	session := ports.SessionData{
		Username:               user.Username,
		Role:                   user.RoleName,
		PasswordUpdateRequired: expired || user.ForcePasswordUpdate,
		IssuedAt:               s.nowFn(),
	}
	sessionID, err := s.sessions.Create(ctx, session, s.cfg.SessionTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	return LoginResult{
		Username:     user.Username,
		Role:         user.RoleName,
		SessionID:    sessionID,
		RedirectPath: s.routeAfterLogin(user, req.RequestedPath),
	}, nil
}

// IssueToken is the API flow. It shares the lockout state machine with Login
// but rejects accounts that would be routed to the change-password screen,
// since a bearer client has no interactive flow to complete.
func (s *Service) IssueToken(ctx context.Context, req LoginRequest) (TokenResponse, error) {
	user, err := s.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return TokenResponse{}, s.handleLoginFailure(ctx, user, req, err)
	}

	if user.PasswordExpired(s.nowFn()) {
		s.recordAttempt(ctx, user.Username, req, false, "PASSWORD_EXPIRED")
		return TokenResponse{}, domain.ErrPasswordExpired
	}
	if user.ForcePasswordUpdate {
		s.recordAttempt(ctx, user.Username, req, false, "PASSWORD_CHANGE_REQUIRED")
		return TokenResponse{}, domain.ErrPasswordChangeRequired
	}

	if err := s.completeSuccess(ctx, user, req); err != nil {
		return TokenResponse{}, err
	}

	now := s.nowFn()
	token, err := s.tokenSigner.Sign(ports.AuthClaims{
		Username:  user.Username,
		Role:      user.RoleName,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	})
	if err != nil {
		return TokenResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.cfg.TokenTTL.Seconds()),
	}, nil
}

// handleLoginFailure applies failure side effects and returns the error the
// caller should surface. Only a wrong password on a live account feeds the
// counter; unknown users, disabled, locked, and guest-expired rejections are
// audited without counting. The attempt that crosses the threshold comes back
// as ErrAccountLocked so the caller reports the new state, and the lockout
// notice is enqueued on that transition only.
func (s *Service) handleLoginFailure(ctx context.Context, user domain.User, req LoginRequest, authErr error) error {
	reason := failureReason(user, authErr)
	finalErr := authErr

	if errors.Is(authErr, domain.ErrBadCredentials) && user.Username != "" {
		res, err := s.users.RecordFailedAttempt(ctx, user.Username, s.cfg.FailedLoginThreshold, s.nowFn())
		if err != nil {
			s.warn(ctx, "record_failed_attempt", "failed to persist attempt counter", err)
		} else if res.JustLocked {
			s.enqueueLockoutNotice(ctx, user, res.FailedAttempts, req.IPAddress)
			finalErr = domain.ErrAccountLocked
			reason = "ACCOUNT_LOCKED"
		}
	}

	s.recordAttempt(ctx, user.Username, req, false, reason)
	return finalErr
}

// completeSuccess rehabilitates the account after a verified credential:
// counter reset, lock cleared, lastLogin stamped, success audited, and an
// expiry warning enqueued when the password is inside the warning window.
func (s *Service) completeSuccess(ctx context.Context, user domain.User, req LoginRequest) error {
	now := s.nowFn()
	if err := s.users.ResetAfterSuccess(ctx, user.Username, now); err != nil {
		return fmt.Errorf("reset after success: %w", err)
	}

	s.recordAttempt(ctx, user.Username, req, true, "")

	if user.ExpirationDate != nil && !user.PasswordExpired(now) &&
		user.ExpirationDate.Sub(now) <= s.cfg.ExpiryWarningWindow {
		s.enqueueExpiryWarning(ctx, user)
	}
	return nil
}

// routeAfterLogin picks the post-login destination. The order is fixed:
// an expired password outranks a forced update, which outranks the saved
// request, which outranks the landing page.
func (s *Service) routeAfterLogin(user domain.User, requestedPath string) string {
	if user.PasswordExpired(s.nowFn()) {
		return s.cfg.PasswordChangePath + "?expired=true"
	}
	if user.ForcePasswordUpdate {
		return s.cfg.PasswordChangePath + "?forced=true"
	}
	if p := sanitizeLocalPath(requestedPath); p != "" {
		return p
	}
	return s.cfg.LandingPath
}

func (s *Service) recordAttempt(ctx context.Context, username string, req LoginRequest, success bool, reason string) {
	if username == "" {
		username = strings.TrimSpace(req.Username)
	}
	attempt := domain.LoginAttempt{
		Username:      username,
		AttemptAt:     s.nowFn(),
		IPAddress:     req.IPAddress,
		Location:      s.resolveLocation(ctx, req.IPAddress),
		Success:       success,
		FailureReason: reason,
	}
	if err := s.audit.Insert(ctx, attempt); err != nil {
		s.warn(ctx, "record_login_attempt", "failed to persist login attempt", err)
	}
}

func (s *Service) resolveLocation(ctx context.Context, ip string) string {
	if s.geo == nil || ip == "" {
		return ""
	}
	loc, err := s.geo.Locate(ctx, ip)
	if err != nil {
		s.warn(ctx, "geo_lookup", "location lookup unavailable", err)
		return ""
	}
	return loc
}

func failureReason(user domain.User, err error) string {
	switch {
	case errors.Is(err, domain.ErrAccountDisabled):
		return "ACCOUNT_DISABLED"
	case errors.Is(err, domain.ErrAccountLocked):
		return "ACCOUNT_LOCKED"
	case errors.Is(err, domain.ErrGuestPasswordExpired):
		return "GUEST_PASSWORD_EXPIRED"
	case user.Username == "":
		return "USER_NOT_FOUND"
	default:
		return "INVALID_PASSWORD"
	}
}

// sanitizeLocalPath accepts only same-site absolute paths, rejecting
// scheme-relative and external redirect targets.
func sanitizeLocalPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return ""
	}
	if strings.ContainsAny(p, "\r\n") {
		return ""
	}
	return p
}
