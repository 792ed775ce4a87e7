package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MrEthical07/tokenauth"
)

// serverConfig is read from the environment, optionally seeded from .env.
type serverConfig struct {
	Addr            string        `env:"ADDR" envDefault:":4000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	Production      bool          `env:"PRODUCTION" envDefault:"false"`
	TrustProxy      bool          `env:"TRUST_PROXY" envDefault:"false"`

	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET,required,notEmpty"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET,required,notEmpty"`
	AccessTTL          time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL         time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	Issuer             string        `env:"TOKEN_ISSUER" envDefault:"tokenauth"`
	ValidationMode     string        `env:"VALIDATION_MODE" envDefault:"strict"`

	// Store selects the identity backend: memory, redis or postgres.
	Store       string `env:"IDENTITY_STORE" envDefault:"memory"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"tokenauth"`
	DatabaseURL string `env:"DATABASE_URL"`

	LoginThrottle    bool          `env:"LOGIN_THROTTLE" envDefault:"false"`
	MaxLoginAttempts int           `env:"MAX_LOGIN_ATTEMPTS" envDefault:"5"`
	LoginCooldown    time.Duration `env:"LOGIN_COOLDOWN" envDefault:"15m"`

	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieDomain string `env:"COOKIE_DOMAIN"`

	AuditEnabled bool `env:"AUDIT_ENABLED" envDefault:"true"`
}

func loadConfig(envFiles ...string) (serverConfig, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// a missing file is fine, the real environment still applies
		_ = godotenv.Load(f)
	}

	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		return serverConfig{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.Store {
	case "memory", "redis":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return serverConfig{}, errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return serverConfig{}, fmt.Errorf("unknown IDENTITY_STORE %q", cfg.Store)
	}
	return cfg, nil
}

// engineConfig maps the environment onto a tokenauth.Config.
func (c serverConfig) engineConfig() (tokenauth.Config, error) {
	cfg := tokenauth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(c.AccessTokenSecret)
	cfg.JWT.RefreshSecret = []byte(c.RefreshTokenSecret)
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.JWT.Issuer = c.Issuer

	switch c.ValidationMode {
	case "strict":
		cfg.ValidationMode = tokenauth.ModeStrict
	case "stateless":
		cfg.ValidationMode = tokenauth.ModeStateless
	default:
		return tokenauth.Config{}, fmt.Errorf("unknown VALIDATION_MODE %q", c.ValidationMode)
	}

	cfg.Security.ProductionMode = c.Production
	cfg.Security.EnableLoginThrottle = c.LoginThrottle
	cfg.Security.EnableIPThrottle = c.LoginThrottle
	cfg.Security.MaxLoginAttempts = c.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = c.LoginCooldown

	cfg.Cookie.Secure = c.CookieSecure
	cfg.Cookie.Domain = c.CookieDomain

	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	if err := cfg.Validate(); err != nil {
		return tokenauth.Config{}, err
	}
	return cfg, nil
}

func newLogger(level string, production bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	if production {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
