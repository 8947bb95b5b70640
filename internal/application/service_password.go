package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/workledger/authcore/internal/domain"
)

// ChangePassword is the authenticated self-service flow used by the normal,
// forced, and expired variants alike. It verifies the current password,
// enforces policy on the new one, restarts the expiry clock, and clears the
// forced-update flag. Guests cannot change their own password.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnauthorized
		}
		return fmt.Errorf("load principal: %w", err)
	}

	if user.IsGuest() {
		return fmt.Errorf("%w: guest accounts cannot change their password", domain.ErrForbidden)
	}
	if !user.Enabled {
		return domain.ErrAccountDisabled
	}
	if user.AccountLocked {
		return domain.ErrAccountLocked
	}

	// The current password is accepted even when expired; expiry is exactly
	// what this flow exists to fix.
	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		return domain.ErrBadCredentials
	}
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	if req.NewPassword == req.CurrentPassword {
		return fmt.Errorf("%w: new password must differ from the current one", domain.ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	if err := s.users.UpdatePassword(ctx, user.Username, hash, s.passwordExpirationFrom(now), now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if user.ForcePasswordUpdate {
		if err := s.users.SetForcePasswordUpdate(ctx, user.Username, false, now); err != nil {
			return fmt.Errorf("clear forced update: %w", err)
		}
	}
	return nil
}
