package postgres

import (
	"github.com/workledger/authcore/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Users       ports.CredentialStore
	Roles       ports.RoleRepository
	Audit       ports.LoginAuditRepository
	Outbox      ports.NotificationOutbox
	Idempotency ports.IdempotencyRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:       &credentialStore{db: db},
		Roles:       &roleRepository{db: db},
		Audit:       &loginAttemptRepository{db: db},
		Outbox:      &outboxRepository{db: db},
		Idempotency: &idempotencyRepository{db: db},
	}
}
