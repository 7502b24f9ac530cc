package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/email"
	"storefront/internal/httpapi"
	"storefront/internal/service"
	"storefront/internal/store/postgres"
	"storefront/internal/throttle"
)

const (
	tokenIssuer    = "storefront"
	janitorEvery   = time.Minute
	redisKeyPrefix = "storefront:login"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Error("generate jwt secret failed", "err", err)
			os.Exit(1)
		}
		logger.Warn("APP_JWT_SECRET not set; using a random secret, tokens will not survive a restart")
	}
	tokens := auth.NewTokenIssuer(secret, tokenIssuer)

	var (
		authSvc    *service.AuthService
		adminSvc   *service.AdminService
		catalogSvc *service.CatalogService
		orderSvc   *service.OrderService
		dbPing     func(context.Context) error
	)

	if cfg.DBDSN != "" {
		pgPool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		authSvc = &service.AuthService{
			Users:               postgres.NewUsersStore(pgPool),
			Sessions:            postgres.NewSessionsStore(pgPool),
			Tokens:              tokens,
			TokenTTL:            cfg.TokenTTL,
			GoogleClientID:      cfg.GoogleClientID,
			VerifyGoogleIDToken: auth.VerifyGoogleIDToken,
			AppleServiceID:      cfg.AppleServiceID,
			VerifyAppleIDToken:  auth.VerifyAppleIDToken,
		}
		adminSvc = &service.AdminService{Users: postgres.NewAdminUsersStore(pgPool)}
		catalogSvc = &service.CatalogService{Products: postgres.NewProductsStore(pgPool)}
		orderSvc = &service.OrderService{Orders: postgres.NewOrdersStore(pgPool), Logger: logger}
		if cfg.SMTPHost != "" {
			orderSvc.Notifier = &service.NotificationService{
				Mailer: &email.Sender{
					Settings: email.SMTPSettings{
						Host:     cfg.SMTPHost,
						Port:     cfg.SMTPPort,
						Username: cfg.SMTPUsername,
						Password: cfg.SMTPPassword,
						TLSMode:  cfg.SMTPTLS,
					},
					FromName:  cfg.MailFromName,
					FromEmail: cfg.MailFrom,
				},
				StoreName: cfg.MailFromName,
				Logger:    logger,
			}
			logger.Info("order receipts enabled", "smtp_host", cfg.SMTPHost)
		}
		dbPing = pgPool.Ping

		if err := bootstrapAdminUser(ctx, logger, authSvc, cfg.AdminBootstrapName, cfg.AdminBootstrapEmail, cfg.AdminBootstrapPassword); err != nil {
			logger.Error("bootstrap admin failed", "err", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("APP_DB_DSN not set; user, product and order routes are disabled")
	}

	guard := throttle.NewGuard(
		newThrottleStore(ctx, logger, cfg),
		throttle.WithMaxFailures(cfg.LoginMaxFailures),
		throttle.WithCooldown(cfg.LoginCooldown),
	)
	guard.StartJanitor(ctx, janitorEvery)

	handler := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:  logger,
		IsProd:  cfg.IsProd(),
		DBPing:  dbPing,
		Auth:    authSvc,
		Admin:   adminSvc,
		Catalog: catalogSvc,
		Orders:  orderSvc,
		Guard:   guard,
		RateLimits: httpapi.RateLimits{
			API:    cfg.APIRateLimit,
			Auth:   cfg.AuthRateLimit,
			Window: cfg.RateWindow,
		},
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxyPrefixes(),
		Metrics:        httpapi.NewMetrics(),
		Background:     ctx,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

// newThrottleStore shares failure records through redis when configured,
// falling back to process memory when redis is unset or unreachable.
func newThrottleStore(ctx context.Context, logger *slog.Logger, cfg config.Config) throttle.Store {
	if cfg.RedisAddr == "" {
		return throttle.NewMemoryStore()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := throttle.NewRedisStore(rdb, throttle.WithKeyPrefix(redisKeyPrefix))

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, login throttle falls back to memory", "addr", cfg.RedisAddr, "err", err)
		_ = rdb.Close()
		return throttle.NewMemoryStore()
	}
	logger.Info("login throttle using redis", "addr", cfg.RedisAddr)
	return store
}

func bootstrapAdminUser(ctx context.Context, logger *slog.Logger, svc *service.AuthService, name, email, password string) error {
	if password == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	_, err := svc.CreateAccount(ctx, service.RegisterParams{
		Name:     name,
		Email:    email,
		Password: password,
		IsAdmin:  true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			logger.Info("admin bootstrap: user already exists", "email", email)
			return nil
		}
		return fmt.Errorf("admin bootstrap: create user: %w", err)
	}

	logger.Info("admin bootstrap: created admin user", "email", email)
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
