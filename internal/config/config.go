package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"APP_ENV" envDefault:"dev"`
	Addr     string `env:"APP_ADDR" envDefault:"127.0.0.1:8080"`
	DBDSN    string `env:"APP_DB_DSN"`
	LogLevel string `env:"APP_LOG_LEVEL"`

	JWTSecret string        `env:"APP_JWT_SECRET"`
	TokenTTL  time.Duration `env:"APP_TOKEN_TTL" envDefault:"720h"`

	CORSOrigins []string `env:"APP_CORS_ORIGINS" envSeparator:","`

	// TrustedProxies are CIDRs or single addresses allowed to set X-Forwarded-For.
	TrustedProxies []string `env:"APP_TRUSTED_PROXIES" envSeparator:","`
	trustedProxies []netip.Prefix

	RedisAddr     string `env:"APP_REDIS_ADDR"`
	RedisPassword string `env:"APP_REDIS_PASSWORD"`
	RedisDB       int    `env:"APP_REDIS_DB" envDefault:"0"`

	LoginMaxFailures int           `env:"APP_LOGIN_MAX_FAILURES" envDefault:"5"`
	LoginCooldown    time.Duration `env:"APP_LOGIN_COOLDOWN" envDefault:"15m"`
	APIRateLimit     int           `env:"APP_API_RATE_LIMIT" envDefault:"300"`
	AuthRateLimit    int           `env:"APP_AUTH_RATE_LIMIT" envDefault:"20"`
	RateWindow       time.Duration `env:"APP_RATE_WINDOW" envDefault:"15m"`

	AdminBootstrapEmail    string `env:"APP_ADMIN_BOOTSTRAP_EMAIL"`
	AdminBootstrapName     string `env:"APP_ADMIN_BOOTSTRAP_NAME"`
	AdminBootstrapPassword string `env:"APP_ADMIN_BOOTSTRAP_PASSWORD"`

	GoogleClientID string `env:"APP_GOOGLE_CLIENT_ID"`
	AppleServiceID string `env:"APP_APPLE_SERVICE_ID"`

	SMTPHost     string `env:"APP_SMTP_HOST"`
	SMTPPort     int    `env:"APP_SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"APP_SMTP_USERNAME"`
	SMTPPassword string `env:"APP_SMTP_PASSWORD"`
	SMTPTLS      string `env:"APP_SMTP_TLS" envDefault:"starttls"`
	MailFrom     string `env:"APP_MAIL_FROM"`
	MailFromName string `env:"APP_MAIL_FROM_NAME" envDefault:"Storefront"`
}

// Load reads the process environment, filling gaps from the file named by
// APP_ENV_FILE (default .env) when it exists. Real environment variables win.
func Load() (Config, error) {
	environ := env.ToMap(os.Environ())

	path := environ["APP_ENV_FILE"]
	if path == "" {
		path = ".env"
	}
	if err := mergeDotEnv(path, environ); err != nil {
		return Config{}, err
	}
	return LoadFromEnv(environ)
}

func mergeDotEnv(path string, environ map[string]string) error {
	fileEnv, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	for k, v := range fileEnv {
		if v == "" {
			continue
		}
		if _, ok := environ[k]; !ok {
			environ[k] = v
		}
	}
	return nil
}

func LoadFromEnv(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	if cfg.TokenTTL <= 0 {
		return Config{}, errors.New("APP_TOKEN_TTL: must be > 0")
	}
	if cfg.LoginMaxFailures <= 0 {
		return Config{}, errors.New("APP_LOGIN_MAX_FAILURES: must be > 0")
	}
	if cfg.LoginCooldown <= 0 {
		return Config{}, errors.New("APP_LOGIN_COOLDOWN: must be > 0")
	}
	if cfg.APIRateLimit < 0 || cfg.AuthRateLimit < 0 {
		return Config{}, errors.New("APP_API_RATE_LIMIT, APP_AUTH_RATE_LIMIT: must be >= 0")
	}
	if cfg.RateWindow <= 0 {
		return Config{}, errors.New("APP_RATE_WINDOW: must be > 0")
	}

	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)
	cfg.TrustedProxies = trimAll(cfg.TrustedProxies)
	for _, raw := range cfg.TrustedProxies {
		p, err := parseProxy(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_TRUSTED_PROXIES: %w", err)
		}
		cfg.trustedProxies = append(cfg.trustedProxies, p)
	}
	cfg.AdminBootstrapEmail = strings.TrimSpace(strings.ToLower(cfg.AdminBootstrapEmail))
	cfg.AdminBootstrapName = strings.TrimSpace(cfg.AdminBootstrapName)

	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapEmail == "" {
		return Config{}, errors.New("APP_ADMIN_BOOTSTRAP_EMAIL: required when APP_ADMIN_BOOTSTRAP_PASSWORD is set")
	}
	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapName == "" {
		cfg.AdminBootstrapName = "Admin"
	}

	cfg.SMTPHost = strings.TrimSpace(cfg.SMTPHost)
	cfg.SMTPTLS = strings.ToLower(strings.TrimSpace(cfg.SMTPTLS))
	switch cfg.SMTPTLS {
	case "tls", "starttls", "none":
	default:
		return Config{}, errors.New("APP_SMTP_TLS: must be one of tls, starttls, none")
	}
	if cfg.SMTPHost != "" {
		if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
			return Config{}, errors.New("APP_SMTP_PORT: must be a valid port")
		}
		if strings.TrimSpace(cfg.MailFrom) == "" {
			return Config{}, errors.New("APP_MAIL_FROM: required when APP_SMTP_HOST is set")
		}
	}

	if cfg.IsProd() {
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.JWTSecret) < 32 {
			return Config{}, errors.New("APP_JWT_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

// TrustedProxyPrefixes returns the parsed APP_TRUSTED_PROXIES entries.
func (c Config) TrustedProxyPrefixes() []netip.Prefix { return c.trustedProxies }

func parseProxy(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func trimAll(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
