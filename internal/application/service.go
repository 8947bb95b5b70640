package application

import (
	"time"

	"github.com/workledger/authcore/internal/ports"
)

type Service struct {
	cfg         Config
	users       ports.CredentialStore
	roles       ports.RoleRepository
	audit       ports.LoginAuditRepository
	outbox      ports.NotificationOutbox
	idempotency ports.IdempotencyRepository
	sessions    ports.SessionStore
	hasher      ports.PasswordHasher
	tokenSigner ports.TokenSigner
	geo         ports.GeoLookup
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Users       ports.CredentialStore
	Roles       ports.RoleRepository
	Audit       ports.LoginAuditRepository
	Outbox      ports.NotificationOutbox
	Idempotency ports.IdempotencyRepository
	Sessions    ports.SessionStore
	Hasher      ports.PasswordHasher
	TokenSigner ports.TokenSigner
	Geo         ports.GeoLookup
}

func NewService(deps Dependencies) *Service {
	return &Service{
		cfg:         deps.Config,
		users:       deps.Users,
		roles:       deps.Roles,
		audit:       deps.Audit,
		outbox:      deps.Outbox,
		idempotency: deps.Idempotency,
		sessions:    deps.Sessions,
		hasher:      deps.Hasher,
		tokenSigner: deps.TokenSigner,
		geo:         deps.Geo,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) PublicJWKs() ([]map[string]any, error) {
	return s.tokenSigner.PublicJWKs()
}
