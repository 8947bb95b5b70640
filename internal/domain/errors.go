package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrBadCredentials hides whether the username or the password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrBadCredentials = errors.New("bad credentials")
	// ErrAccountDisabled signals an administratively deactivated account.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountLocked signals lockout after repeated failed attempts.
	// Only an administrative unlock or a successful login clears it.
	ErrAccountLocked = errors.New("account locked")
	// ErrGuestPasswordExpired marks the dead-end state for restricted
	// accounts: the password expired and the holder cannot change it.
	ErrGuestPasswordExpired = errors.New("guest password expired")
	// ErrPasswordExpired means the credential verified but the password
	// lifetime ran out; the caller must route to the change-password flow.
	ErrPasswordExpired = errors.New("password expired")
	// ErrPasswordChangeRequired means an administrator flagged the account
	// for a forced password update before normal use resumes.
	ErrPasswordChangeRequired = errors.New("password change required")

	ErrSessionExpired = errors.New("session expired")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
	ErrRateLimited    = errors.New("rate limited")
	ErrTokenExpired   = errors.New("token expired")
)
