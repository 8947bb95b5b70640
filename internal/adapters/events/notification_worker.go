package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/workledger/authcore/internal/ports"
)

// NotificationWorker drains the transactional outbox and renders queued
// lockout and expiry notices into mail. Delivery is decoupled from the login
// transaction for reliability: the login path only ever enqueues.
type NotificationWorker struct {
	logger     *slog.Logger
	outbox     ports.NotificationOutbox
	mailer     ports.Mailer
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
}

// NewNotificationWorker constructs the dispatch loop with sane defaults.
func NewNotificationWorker(
	logger *slog.Logger,
	outbox ports.NotificationOutbox,
	mailer ports.Mailer,
	interval time.Duration,
	batchSize int,
	claimTTL time.Duration,
	maxRetries int,
) *NotificationWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if claimTTL <= 0 {
		claimTTL = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &NotificationWorker{
		logger:     logger,
		outbox:     outbox,
		mailer:     mailer,
		interval:   interval,
		batchSize:  batchSize,
		claimTTL:   claimTTL,
		maxRetries: maxRetries,
	}
}

// Run executes the periodic dispatch loop until context cancellation.
func (w *NotificationWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.notification_worker",
				"layer", "adapter",
				"operation", "outbox_process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *NotificationWorker) processOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, time.Now().UTC().Add(w.claimTTL))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	published := 0
	failed := 0
	deadLettered := 0
	for _, rec := range records {
		if rec.RetryCount >= w.maxRetries {
			deadLettered++
			_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry threshold reached before dispatch", now)
			continue
		}

		if err := w.dispatch(ctx, rec); err != nil {
			failed++
			retriesAfterFailure := rec.RetryCount + 1
			if retriesAfterFailure >= w.maxRetries {
				deadLettered++
				w.logger.ErrorContext(ctx, "notice moved to dlq",
					"module", "events.notification_worker",
					"layer", "adapter",
					"operation", "dispatch_notice",
					"outcome", "failure",
					"outbox_id", rec.OutboxID,
					"event_type", rec.EventType,
					"retry_count", retriesAfterFailure,
					"error", err,
				)
				_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, err.Error(), now)
				continue
			}

			w.logger.WarnContext(ctx, "notice dispatch failed; retry scheduled",
				"module", "events.notification_worker",
				"layer", "adapter",
				"operation", "dispatch_notice",
				"outcome", "failure",
				"outbox_id", rec.OutboxID,
				"event_type", rec.EventType,
				"retry_count", retriesAfterFailure,
				"error", err,
			)
			_ = w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now)
			continue
		}
		published++
		_ = w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now)
	}
	if len(records) > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"module", "events.notification_worker",
			"layer", "adapter",
			"operation", "outbox_process_once",
			"outcome", "success",
			"batch_size", len(records),
			"published_count", published,
			"failed_count", failed,
			"dead_lettered_count", deadLettered,
		)
	}
	return nil
}

type noticePayload struct {
	Username       string     `json:"username"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	FailedAttempts int        `json:"failed_attempts"`
	SourceIP       string     `json:"source_ip"`
	LockedAt       *time.Time `json:"locked_at"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

func (w *NotificationWorker) dispatch(ctx context.Context, rec ports.OutboxRecord) error {
	var payload noticePayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return fmt.Errorf("decode notice payload: %w", err)
	}
	if payload.Email == "" {
		return fmt.Errorf("notice %s has no recipient", rec.OutboxID)
	}

	msg, err := renderNotice(rec.EventType, payload)
	if err != nil {
		return err
	}
	return w.mailer.Send(ctx, msg)
}

func renderNotice(eventType string, p noticePayload) (ports.MailMessage, error) {
	switch eventType {
	case "account.locked":
		body := fmt.Sprintf(
			"The account %s was locked after %d failed sign-in attempts. Contact an administrator to unlock it.",
			p.Username, p.FailedAttempts,
		)
		if p.SourceIP != "" {
			body += fmt.Sprintf(" The last attempt came from %s.", p.SourceIP)
		}
		return ports.MailMessage{
			To:      p.Email,
			Subject: "Your account has been locked",
			Body:    body,
		}, nil
	case "password.expiring":
		body := fmt.Sprintf("The password for %s is about to expire.", p.Username)
		if p.ExpiresAt != nil {
			body = fmt.Sprintf("The password for %s expires on %s. Please change it before then.",
				p.Username, p.ExpiresAt.Format("2006-01-02"))
		}
		return ports.MailMessage{
			To:      p.Email,
			Subject: "Your password is about to expire",
			Body:    body,
		}, nil
	default:
		return ports.MailMessage{}, fmt.Errorf("unknown notice type %q", eventType)
	}
}
