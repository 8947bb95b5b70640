package postgres

import (
	"time"

	"github.com/google/uuid"
)

type roleModel struct {
	RoleID    uuid.UUID `gorm:"column:role_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (roleModel) TableName() string { return "roles" }

type permissionModel struct {
	PermissionID uuid.UUID `gorm:"column:permission_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Resource     string    `gorm:"column:resource"`
	Action       string    `gorm:"column:action"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (permissionModel) TableName() string { return "permissions" }

type rolePermissionModel struct {
	RoleID       uuid.UUID `gorm:"column:role_id;type:uuid;primaryKey"`
	PermissionID uuid.UUID `gorm:"column:permission_id;type:uuid;primaryKey"`
}

func (rolePermissionModel) TableName() string { return "role_permissions" }

type userModel struct {
	Username            string     `gorm:"column:username;primaryKey"`
	FullName            string     `gorm:"column:full_name"`
	Email               string     `gorm:"column:email"`
	PasswordHash        string     `gorm:"column:password_hash"`
	RoleID              uuid.UUID  `gorm:"column:role_id"`
	Enabled             bool       `gorm:"column:enabled"`
	ForcePasswordUpdate bool       `gorm:"column:force_password_update"`
	ExpirationDate      *time.Time `gorm:"column:expiration_date"`
	FailedLoginAttempts int        `gorm:"column:failed_login_attempts"`
	AccountLocked       bool       `gorm:"column:account_locked"`
	LastLogin           *time.Time `gorm:"column:last_login"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type loginAttemptModel struct {
	ID            int64     `gorm:"column:id;primaryKey"`
	Username      string    `gorm:"column:username"`
	AttemptAt     time.Time `gorm:"column:attempt_at"`
	IPAddress     *string   `gorm:"column:ip_address"`
	Location      *string   `gorm:"column:location"`
	Success       bool      `gorm:"column:success"`
	FailureReason string    `gorm:"column:failure_reason"`
}

func (loginAttemptModel) TableName() string { return "login_attempts" }

type notificationOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (notificationOutboxModel) TableName() string { return "notification_outbox" }

type idempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body;type:jsonb"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (idempotencyModel) TableName() string { return "idempotency_keys" }
