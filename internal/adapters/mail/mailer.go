package mail

import (
	"context"
	"log/slog"

	"github.com/workledger/authcore/internal/ports"
)

// LogMailer records outgoing notices in the structured log instead of
// handing them to a delivery provider. Actual delivery is owned by an
// external system consuming the same log stream.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg ports.MailMessage) error {
	m.logger.InfoContext(ctx, "mail notice dispatched",
		"module", "mail",
		"layer", "adapter",
		"operation", "send",
		"outcome", "success",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
