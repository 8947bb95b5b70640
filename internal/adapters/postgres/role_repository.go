package postgres

import (
	"context"

	"github.com/workledger/authcore/internal/domain"
	"gorm.io/gorm"
)

type roleRepository struct {
	db *gorm.DB
}

// PermissionsForRole reads the live graph on every call. There is no cache
// here on purpose: grants and revocations must take effect without re-login.
func (r *roleRepository) PermissionsForRole(ctx context.Context, roleName string) ([]domain.Permission, error) {
	var rows []permissionModel
	if err := r.db.WithContext(ctx).
		Model(&permissionModel{}).
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.permission_id").
		Joins("JOIN roles r ON r.role_id = rp.role_id").
		Where("r.name = ?", roleName).
		Order("permissions.resource ASC, permissions.action ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]domain.Permission, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.Permission{
			Resource: row.Resource,
			Action:   row.Action,
		})
	}
	return result, nil
}
