package application

import (
	"time"
)

type Config struct {
	DefaultRole          string
	FailedLoginThreshold int
	SessionTTL           time.Duration
	TokenTTL             time.Duration
	PasswordLifetime     time.Duration
	ExpiryWarningWindow  time.Duration
	LandingPath          string
	PasswordChangePath   string
}

type LoginRequest struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
	// RequestedPath is the pre-login destination replayed after success.
	// It must be a local path; anything else is discarded.
	RequestedPath string
}

// LoginResult is the browser-login outcome: an established session plus the
// post-login redirect chosen by the routing order
// expired > forced change > saved request > landing.
type LoginResult struct {
	Username     string
	Role         string
	SessionID    string
	RedirectPath string
}

type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

type ChangePasswordRequest struct {
	Username        string
	CurrentPassword string
	NewPassword     string
}

type CreateUserRequest struct {
	Username            string `json:"username"`
	FullName            string `json:"full_name"`
	Email               string `json:"email"`
	Password            string `json:"password"`
	Role                string `json:"role"`
	ForcePasswordUpdate bool   `json:"force_password_update"`
}

type CreateUserResponse struct {
	Username       string     `json:"username"`
	Role           string     `json:"role"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

type LoginHistoryQuery struct {
	Page  int
	Limit int
}

type LoginHistoryItem struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
	IPAddress     string    `json:"ip_address"`
	Location      string    `json:"location,omitempty"`
}

type MeResponse struct {
	Username            string     `json:"username"`
	FullName            string     `json:"full_name"`
	Email               string     `json:"email"`
	Role                string     `json:"role"`
	Permissions         []string   `json:"permissions"`
	ForcePasswordUpdate bool       `json:"force_password_update"`
	ExpirationDate      *time.Time `json:"expiration_date,omitempty"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
}
