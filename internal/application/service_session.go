package application

import (
	"context"
	"fmt"

	"github.com/workledger/authcore/internal/domain"
	"github.com/workledger/authcore/internal/ports"
)

// ResumeSession loads the server-side session for a presented cookie and
// slides the idle timeout. A stale or unknown ID reports ErrSessionExpired so
// the gate can distinguish a timed-out visitor from an anonymous one.
func (s *Service) ResumeSession(ctx context.Context, sessionID string) (*ports.SessionData, error) {
	if sessionID == "" {
		return nil, domain.ErrUnauthorized
	}
	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Touch(ctx, sessionID, s.cfg.SessionTTL); err != nil {
		s.warn(ctx, "touch_session", "failed to extend session ttl", err)
	}
	return data, nil
}

// Logout destroys the server-side session. Destroying an already-gone
// session is not an error; logout is idempotent.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// SaveRequestedPath remembers the pre-login destination on an existing
// session so it can be replayed after the password update completes.
func (s *Service) SaveRequestedPath(ctx context.Context, sessionID, path string) {
	p := sanitizeLocalPath(path)
	if sessionID == "" || p == "" {
		return
	}
	if err := s.sessions.SaveRequestedPath(ctx, sessionID, p); err != nil {
		s.warn(ctx, "save_requested_path", "failed to save requested path", err)
	}
}

// CompletePasswordUpdate releases a session pinned to the change-password
// flow and returns where the visitor should land: the saved request if one
// exists, the landing page otherwise. The saved path is single-use.
func (s *Service) CompletePasswordUpdate(ctx context.Context, sessionID string) (string, error) {
	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if err := s.sessions.SetPasswordUpdateRequired(ctx, sessionID, false); err != nil {
		return "", fmt.Errorf("clear password update marker: %w", err)
	}

	target := sanitizeLocalPath(data.SavedPath)
	if target == "" {
		target = s.cfg.LandingPath
	}
	if data.SavedPath != "" {
		if err := s.sessions.SaveRequestedPath(ctx, sessionID, ""); err != nil {
			s.warn(ctx, "clear_saved_path", "failed to clear saved path", err)
		}
	}
	return target, nil
}

// ValidateToken parses the bearer token and re-checks live account state.
// A token stays cryptographically valid for its lifetime, but disabling or
// locking the account cuts access on the next request.
func (s *Service) ValidateToken(ctx context.Context, token string) (ports.AuthClaims, domain.User, error) {
	claims, err := s.tokenSigner.ParseAndValidate(token)
	if err != nil {
		return ports.AuthClaims{}, domain.User{}, domain.ErrUnauthorized
	}
	user, err := s.users.FindByUsername(ctx, claims.Username)
	if err != nil {
		return ports.AuthClaims{}, domain.User{}, domain.ErrUnauthorized
	}
	if !user.Enabled {
		return ports.AuthClaims{}, domain.User{}, domain.ErrAccountDisabled
	}
	if user.AccountLocked {
		return ports.AuthClaims{}, domain.User{}, domain.ErrAccountLocked
	}
	return claims, user, nil
}
