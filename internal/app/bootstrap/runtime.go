package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cacheadapter "github.com/workledger/authcore/internal/adapters/cache"
	eventadapter "github.com/workledger/authcore/internal/adapters/events"
	geoadapter "github.com/workledger/authcore/internal/adapters/geo"
	httpadapter "github.com/workledger/authcore/internal/adapters/http"
	mailadapter "github.com/workledger/authcore/internal/adapters/mail"
	"github.com/workledger/authcore/internal/adapters/postgres"
	"github.com/workledger/authcore/internal/adapters/security"
	"github.com/workledger/authcore/internal/application"
	"github.com/workledger/authcore/internal/ports"
	"github.com/workledger/authcore/internal/ratelimit"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	limiter    *ratelimit.RateLimiter
	worker     *eventadapter.NotificationWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("bootstrapping auth core", "service", cfg.ServiceID, "http_port", cfg.HTTPPort)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	repos := postgres.NewRepositories(db)
	tokenSigner, err := security.NewJWTSigner(cfg.JWTKeyID, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err != nil {
		if !cfg.AllowEphemeralJWT {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init jwt signer: %w", err)
		}
		logger.Warn("using ephemeral JWT keys for local/dev runtime")
		tokenSigner, err = security.NewEphemeralJWTSigner(cfg.JWTKeyID)
		if err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init ephemeral jwt signer: %w", err)
		}
	}

	var geo ports.GeoLookup = geoadapter.NoopLookup{}
	if cfg.GeoLookupURL != "" {
		geo = geoadapter.NewHTTPLookup(cfg.GeoLookupURL, cfg.GeoLookupTimeout)
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			DefaultRole:          cfg.DefaultRole,
			FailedLoginThreshold: cfg.FailedThreshold,
			SessionTTL:           cfg.SessionTTL,
			TokenTTL:             cfg.TokenTTL,
			PasswordLifetime:     cfg.PasswordLifetime,
			ExpiryWarningWindow:  cfg.ExpiryWarningWindow,
			LandingPath:          "/",
			PasswordChangePath:   "/account/password",
		},
		Users:       repos.Users,
		Roles:       repos.Roles,
		Audit:       repos.Audit,
		Outbox:      repos.Outbox,
		Idempotency: repos.Idempotency,
		Sessions:    cacheadapter.NewRedisSessionStore(redisClient),
		Hasher:      security.NewBcryptHasher(cfg.BcryptCost),
		TokenSigner: tokenSigner,
		Geo:         geo,
	})

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitQuota, cfg.RateLimitWindow)

	handler := httpadapter.NewHandler(svc, limiter, httpadapter.Options{
		SessionCookie:  cfg.SessionCookieName,
		ClientIPHeader: cfg.ClientIPHeader,
		SecureCookies:  cfg.SecureCookies,
	})
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	worker := eventadapter.NewNotificationWorker(
		logger,
		repos.Outbox,
		mailadapter.NewLogMailer(logger),
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxClaimTTL,
		cfg.OutboxMaxRetries,
	)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		limiter:    limiter,
		worker:     worker,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go r.limiter.StartCleanupWorker(ctx, 10*time.Minute)

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("notification worker started")
	err := r.worker.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
