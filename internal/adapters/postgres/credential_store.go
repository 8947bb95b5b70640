package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/workledger/authcore/internal/domain"
	"github.com/workledger/authcore/internal/ports"
	"gorm.io/gorm"
)

type credentialStore struct {
	db *gorm.DB
}

func (r *credentialStore) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	roleName, err := r.loadRoleName(ctx, rec)
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(rec, roleName), nil
}

func (r *credentialStore) Create(ctx context.Context, params ports.CreateUserParams) (domain.User, error) {
	var result domain.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role roleModel
		if err := tx.Where("name = ?", params.RoleName).Take(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, params.RoleName)
			}
			return err
		}

		rec := userModel{
			Username:            params.Username,
			FullName:            params.FullName,
			Email:               params.Email,
			PasswordHash:        params.PasswordHash,
			RoleID:              role.RoleID,
			Enabled:             true,
			ForcePasswordUpdate: params.ForcePasswordUpdate,
			ExpirationDate:      params.ExpirationDate,
			CreatedAt:           params.CreatedAtUTC,
			UpdatedAt:           params.CreatedAtUTC,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}

		result = toDomainUser(rec, role.Name)
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return result, nil
}

// RecordFailedAttempt increments the counter and flips the lock in one
// statement. Concurrent failures serialize at the row, so the threshold is
// exact and the lock transition happens on exactly one write.
func (r *credentialStore) RecordFailedAttempt(ctx context.Context, username string, threshold int, at time.Time) (ports.FailedAttemptResult, error) {
	var row struct {
		FailedLoginAttempts int  `gorm:"column:failed_login_attempts"`
		AccountLocked       bool `gorm:"column:account_locked"`
	}
	res := r.db.WithContext(ctx).Raw(`
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    account_locked = failed_login_attempts + 1 >= ?,
		    updated_at = ?
		WHERE username = ? AND NOT account_locked
		RETURNING failed_login_attempts, account_locked`,
		threshold, at, username,
	).Scan(&row)
	if res.Error != nil {
		return ports.FailedAttemptResult{}, res.Error
	}
	if res.RowsAffected == 0 {
		return ports.FailedAttemptResult{}, domain.ErrNotFound
	}
	return ports.FailedAttemptResult{
		FailedAttempts: row.FailedLoginAttempts,
		Locked:         row.AccountLocked,
		// The guard keeps already-locked rows out, so a true here is the
		// transition itself.
		JustLocked: row.AccountLocked,
	}, nil
}

func (r *credentialStore) ResetAfterSuccess(ctx context.Context, username string, loginAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("username = ?", username).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"account_locked":        false,
			"last_login":            loginAt,
			"updated_at":            loginAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *credentialStore) UpdatePassword(ctx context.Context, username, passwordHash string, newExpiration *time.Time, updatedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("username = ?", username).
		Updates(map[string]any{
			"password_hash":   passwordHash,
			"expiration_date": newExpiration,
			"updated_at":      updatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *credentialStore) Unlock(ctx context.Context, username string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("username = ?", username).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"account_locked":        false,
			"updated_at":            at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *credentialStore) SetForcePasswordUpdate(ctx context.Context, username string, required bool, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("username = ?", username).
		Updates(map[string]any{
			"force_password_update": required,
			"updated_at":            at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *credentialStore) loadRoleName(ctx context.Context, rec userModel) (string, error) {
	var role roleModel
	if err := r.db.WithContext(ctx).Where("role_id = ?", rec.RoleID).Take(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("role for %s: %w", rec.Username, domain.ErrNotFound)
		}
		return "", err
	}
	return role.Name, nil
}
