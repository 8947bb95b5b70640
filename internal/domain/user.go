package domain

import (
	"time"
)

// RoleGuest is the restricted role category. Guests cannot change their own
// password, so a guest whose password expired stays locked out until an
// administrator intervenes.
const RoleGuest = "GUEST"

// User is the canonical authentication principal for the workledger core.
// It keeps only auth-relevant state; task/expense ownership lives elsewhere.
type User struct {
	Username            string
	FullName            string
	Email               string
	PasswordHash        string
	RoleName            string
	Enabled             bool
	ForcePasswordUpdate bool
	// ExpirationDate is the calendar boundary of the current password.
	// Nil means the password never expires.
	ExpirationDate      *time.Time
	FailedLoginAttempts int
	AccountLocked       bool
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PasswordExpired reports whether the password lifetime boundary has passed.
func (u User) PasswordExpired(now time.Time) bool {
	return u.ExpirationDate != nil && u.ExpirationDate.Before(now)
}

// IsGuest reports whether the principal belongs to the restricted GUEST category.
func (u User) IsGuest() bool {
	return u.RoleName == RoleGuest
}

// Role is a named group of permissions. Effective permissions are the plain
// union of the assigned set; there is no inheritance hierarchy.
type Role struct {
	Name        string
	Permissions []Permission
}

// Permission is a single grantable capability identified by RESOURCE:ACTION.
type Permission struct {
	Resource string
	Action   string
}

// Key returns the derived RESOURCE:ACTION identifier. Keys are case-sensitive
// and globally unique per (resource, action) pair.
func (p Permission) Key() string {
	return p.Resource + ":" + p.Action
}

// LoginAttempt records one authentication outcome for audit and lockout
// follow-up. Records are append-only and never mutated.
type LoginAttempt struct {
	ID            int64
	Username      string
	AttemptAt     time.Time
	IPAddress     string
	Location      string
	Success       bool
	FailureReason string
}
