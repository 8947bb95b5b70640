package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/workledger/authcore/internal/domain"
	"github.com/workledger/authcore/internal/ports"
)

// enqueueLockoutNotice hands the lockout notification to the outbox. Enqueue
// failures are logged and swallowed: a mailer or storage problem must never
// turn a login failure into a server error.
func (s *Service) enqueueLockoutNotice(ctx context.Context, user domain.User, attempts int, sourceIP string) {
	now := s.nowFn()
	payload, _ := json.Marshal(map[string]any{
		"username":        user.Username,
		"full_name":       user.FullName,
		"email":           user.Email,
		"failed_attempts": attempts,
		"source_ip":       sourceIP,
		"locked_at":       now,
	})
	if err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    "account.locked",
		PartitionKey: user.Username,
		Payload:      payload,
		OccurredAt:   now,
	}); err != nil {
		s.warn(ctx, "enqueue_lockout_notice", "failed to enqueue lockout notice", err)
	}
}

// enqueueExpiryWarning notifies the holder that the password is inside the
// warning window. Best-effort like the lockout notice.
func (s *Service) enqueueExpiryWarning(ctx context.Context, user domain.User) {
	now := s.nowFn()
	payload, _ := json.Marshal(map[string]any{
		"username":   user.Username,
		"full_name":  user.FullName,
		"email":      user.Email,
		"expires_at": user.ExpirationDate,
	})
	if err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    "password.expiring",
		PartitionKey: user.Username,
		Payload:      payload,
		OccurredAt:   now,
	}); err != nil {
		s.warn(ctx, "enqueue_expiry_warning", "failed to enqueue expiry warning", err)
	}
}

func (s *Service) warn(ctx context.Context, operation, msg string, err error) {
	slog.Default().WarnContext(ctx, msg,
		"service", "workledger-authcore",
		"module", "application",
		"layer", "application",
		"operation", operation,
		"outcome", "warning",
		"error", err,
	)
}

// hashRequest computes a deterministic request fingerprint for idempotency
// conflict detection.
func hashRequest(req any) string {
	raw, _ := json.Marshal(req)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// passwordExpirationFrom restarts the expiry clock after a password write.
// A zero lifetime means passwords never expire.
func (s *Service) passwordExpirationFrom(at time.Time) *time.Time {
	if s.cfg.PasswordLifetime <= 0 {
		return nil
	}
	t := at.Add(s.cfg.PasswordLifetime)
	return &t
}
