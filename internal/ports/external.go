package ports

import "context"

// MailMessage is the delivery-neutral notice envelope handed to the Mailer.
type MailMessage struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers operator and account notices. Implementations are
// best-effort; callers never fail a login flow on a mailer error.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// GeoLookup resolves an IP address to a human-readable location for the
// login audit trail. Lookups are best-effort; an empty string is a valid
// answer and errors must never block the login path.
type GeoLookup interface {
	Locate(ctx context.Context, ip string) (string, error)
}
