package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the auth core.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int

	DatabaseURL string
	RedisURL    string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	BcryptCost int

	TokenTTL            time.Duration
	SessionTTL          time.Duration
	FailedThreshold     int
	PasswordLifetime    time.Duration
	ExpiryWarningWindow time.Duration
	DefaultRole         string

	RateLimitQuota  int
	RateLimitWindow time.Duration
	ClientIPHeader  string

	SessionCookieName string
	SecureCookies     bool

	GeoLookupURL     string
	GeoLookupTimeout time.Duration

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Auth struct {
		DefaultRole          string `yaml:"default_role"`
		FailedLoginThreshold int    `yaml:"failed_login_threshold"`
		SessionCookie        string `yaml:"session_cookie"`
		ClientIPHeader       string `yaml:"client_ip_header"`
	} `yaml:"auth"`
	Geo struct {
		LookupURL string `yaml:"lookup_url"`
	} `yaml:"geo"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:           "workledger-authcore",
		HTTPPort:            8080,
		JWTKeyID:            "authcore-key-1",
		AllowEphemeralJWT:   true,
		BcryptCost:          12,
		TokenTTL:            24 * time.Hour,
		SessionTTL:          30 * time.Minute,
		FailedThreshold:     5,
		PasswordLifetime:    90 * 24 * time.Hour,
		ExpiryWarningWindow: 7 * 24 * time.Hour,
		DefaultRole:         "USER",
		RateLimitQuota:      60,
		RateLimitWindow:     time.Minute,
		SessionCookieName:   "wl_session",
		SecureCookies:       true,
		GeoLookupTimeout:    2 * time.Second,
		MaxDBConns:          20,
		OutboxPollInterval:  2 * time.Second,
		OutboxBatchSize:     100,
		OutboxClaimTTL:      30 * time.Second,
		OutboxMaxRetries:    5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Auth.DefaultRole != "" {
			cfg.DefaultRole = f.Auth.DefaultRole
		}
		if f.Auth.FailedLoginThreshold > 0 {
			cfg.FailedThreshold = f.Auth.FailedLoginThreshold
		}
		if f.Auth.SessionCookie != "" {
			cfg.SessionCookieName = f.Auth.SessionCookie
		}
		if f.Auth.ClientIPHeader != "" {
			cfg.ClientIPHeader = f.Auth.ClientIPHeader
		}
		if f.Geo.LookupURL != "" {
			cfg.GeoLookupURL = f.Geo.LookupURL
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)
	cfg.DefaultRole = envOrDefault("DEFAULT_ROLE", cfg.DefaultRole)
	cfg.SessionCookieName = envOrDefault("SESSION_COOKIE_NAME", cfg.SessionCookieName)
	cfg.SecureCookies = envBool("SECURE_COOKIES", cfg.SecureCookies)
	cfg.ClientIPHeader = envOrDefault("CLIENT_IP_HEADER", cfg.ClientIPHeader)
	cfg.GeoLookupURL = envOrDefault("GEO_LOOKUP_URL", cfg.GeoLookupURL)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.FailedThreshold = envInt("FAILED_LOGIN_THRESHOLD", cfg.FailedThreshold)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.RateLimitQuota = envInt("RATE_LIMIT_QUOTA", cfg.RateLimitQuota)

	cfg.TokenTTL = time.Duration(envInt("TOKEN_EXPIRY_HOURS", int(cfg.TokenTTL.Hours()))) * time.Hour
	cfg.SessionTTL = time.Duration(envInt("SESSION_IDLE_MINUTES", int(cfg.SessionTTL.Minutes()))) * time.Minute
	cfg.PasswordLifetime = time.Duration(envInt("PASSWORD_LIFETIME_DAYS", int(cfg.PasswordLifetime.Hours()/24))) * 24 * time.Hour
	cfg.ExpiryWarningWindow = time.Duration(envInt("PASSWORD_WARNING_DAYS", int(cfg.ExpiryWarningWindow.Hours()/24))) * 24 * time.Hour
	cfg.RateLimitWindow = time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", int(cfg.RateLimitWindow.Seconds()))) * time.Second
	cfg.GeoLookupTimeout = time.Duration(envInt("GEO_LOOKUP_TIMEOUT_SECONDS", int(cfg.GeoLookupTimeout.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
