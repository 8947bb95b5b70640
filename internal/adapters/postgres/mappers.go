package postgres

import (
	"errors"
	"strings"

	"github.com/workledger/authcore/internal/domain"
	"gorm.io/gorm"
)

func toDomainUser(row userModel, roleName string) domain.User {
	return domain.User{
		Username:            row.Username,
		FullName:            row.FullName,
		Email:               row.Email,
		PasswordHash:        row.PasswordHash,
		RoleName:            roleName,
		Enabled:             row.Enabled,
		ForcePasswordUpdate: row.ForcePasswordUpdate,
		ExpirationDate:      row.ExpirationDate,
		FailedLoginAttempts: row.FailedLoginAttempts,
		AccountLocked:       row.AccountLocked,
		LastLogin:           row.LastLogin,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
}

func toDomainLoginAttempt(row loginAttemptModel) domain.LoginAttempt {
	return domain.LoginAttempt{
		ID:            row.ID,
		Username:      row.Username,
		AttemptAt:     row.AttemptAt,
		IPAddress:     derefString(row.IPAddress),
		Location:      derefString(row.Location),
		Success:       row.Success,
		FailureReason: row.FailureReason,
	}
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
