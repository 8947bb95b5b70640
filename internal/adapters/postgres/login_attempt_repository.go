package postgres

import (
	"context"

	"github.com/workledger/authcore/internal/domain"
	"gorm.io/gorm"
)

type loginAttemptRepository struct {
	db *gorm.DB
}

func (r *loginAttemptRepository) Insert(ctx context.Context, attempt domain.LoginAttempt) error {
	rec := loginAttemptModel{
		Username:      attempt.Username,
		AttemptAt:     attempt.AttemptAt,
		IPAddress:     nullableString(attempt.IPAddress),
		Location:      nullableString(attempt.Location),
		Success:       attempt.Success,
		FailureReason: attempt.FailureReason,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *loginAttemptRepository) ListByUsername(ctx context.Context, username string, limit, offset int) ([]domain.LoginAttempt, error) {
	var rows []loginAttemptModel
	if err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("attempt_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]domain.LoginAttempt, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainLoginAttempt(row))
	}
	return result, nil
}
