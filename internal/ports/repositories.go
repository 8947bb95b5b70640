package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/workledger/authcore/internal/domain"
)

// CreateUserParams captures atomic user-provisioning inputs.
// Idempotency metadata travels with the write so admin creation is replay-safe.
type CreateUserParams struct {
	Username            string
	FullName            string
	Email               string
	PasswordHash        string
	RoleName            string
	ForcePasswordUpdate bool
	ExpirationDate      *time.Time
	CreatedAtUTC        time.Time
}

// FailedAttemptResult is the post-increment counter state returned by the
// store. Returning it from the same statement keeps the lockout threshold
// exact under concurrent failures.
type FailedAttemptResult struct {
	FailedAttempts int
	Locked         bool
	// JustLocked is true only on the write that crossed the threshold,
	// so the lockout notice fires exactly once.
	JustLocked bool
}

// CredentialStore defines persistence operations for authentication
// principals. The failed-attempt increment is a single atomic statement;
// read-modify-write from the application layer is deliberately not offered.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	Create(ctx context.Context, params CreateUserParams) (domain.User, error)
	RecordFailedAttempt(ctx context.Context, username string, threshold int, at time.Time) (FailedAttemptResult, error)
	ResetAfterSuccess(ctx context.Context, username string, loginAt time.Time) error
	UpdatePassword(ctx context.Context, username, passwordHash string, newExpiration *time.Time, updatedAt time.Time) error
	Unlock(ctx context.Context, username string, at time.Time) error
	SetForcePasswordUpdate(ctx context.Context, username string, required bool, at time.Time) error
}

// RoleRepository resolves the live role/permission graph. Lookups hit the
// store on every call; permission changes take effect without re-login.
type RoleRepository interface {
	PermissionsForRole(ctx context.Context, roleName string) ([]domain.Permission, error)
}

// LoginAuditRepository stores login outcomes used by lockout follow-up and
// the history endpoint.
type LoginAuditRepository interface {
	Insert(ctx context.Context, attempt domain.LoginAttempt) error
	ListByUsername(ctx context.Context, username string, limit, offset int) ([]domain.LoginAttempt, error)
}

// OutboxEvent is the write-side notification payload prior to storage.
// It is adapter-neutral to keep application code independent of delivery specifics.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// NotificationOutbox controls the publish-retry workflow for lockout and
// expiry notices. The explicit contract enables the transactional outbox
// pattern without leaking DB details.
type NotificationOutbox interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}

// IdempotencyRecord tracks a previously accepted mutating request.
// Storing response metadata lets handlers return stable replay responses.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdempotencyRepository enforces idempotent mutation semantics.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}
