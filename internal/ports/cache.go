package ports

import (
	"context"
	"time"
)

// SessionData is the server-side session envelope. The browser cookie
// carries only the opaque session ID; everything here stays on the server.
type SessionData struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	// PasswordUpdateRequired keeps the session pinned to the
	// change-password flow until the update completes.
	PasswordUpdateRequired bool `json:"password_update_required"`
	// SavedPath is the pre-login request path replayed after a
	// successful login, single-use.
	SavedPath string    `json:"saved_path,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
}

// SessionStore manages server-side browser sessions with idle-timeout TTL.
// Get on a missing or expired ID returns domain.ErrSessionExpired so the
// caller can distinguish a stale cookie from no cookie at all.
type SessionStore interface {
	Create(ctx context.Context, data SessionData, ttl time.Duration) (string, error)
	Get(ctx context.Context, sessionID string) (*SessionData, error)
	Touch(ctx context.Context, sessionID string, ttl time.Duration) error
	SetPasswordUpdateRequired(ctx context.Context, sessionID string, required bool) error
	SaveRequestedPath(ctx context.Context, sessionID, path string) error
	Destroy(ctx context.Context, sessionID string) error
}
