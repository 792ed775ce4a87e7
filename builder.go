package tokenauth

import (
	"errors"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth/identity"
	internalaudit "github.com/MrEthical07/tokenauth/internal/audit"
	"github.com/MrEthical07/tokenauth/internal/rate"
	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/MrEthical07/tokenauth/password"
)

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	store  identity.Store
	redis  redis.UniversalClient
	logger *zap.Logger

	auditSinks []AuditSink
	hasher     CredentialHasher
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. The Builder keeps its own copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithIdentityStore sets the identity store. Required.
func (b *Builder) WithIdentityStore(store identity.Store) *Builder {
	b.store = store
	return b
}

// WithRedis sets the Redis client used for login throttling. Required when
// Security.EnableLoginThrottle is set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Defaults to zap.NewNop.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink adds audit sinks; every event reaches each of them. When
// audit is enabled and no sink is set, events are written to the engine logger.
func (b *Builder) WithAuditSink(sinks ...AuditSink) *Builder {
	for _, s := range sinks {
		if s != nil {
			b.auditSinks = append(b.auditSinks, s)
		}
	}
	return b
}

// WithCredentialHasher overrides the argon2id hasher built from Config.Password.
func (b *Builder) WithCredentialHasher(h CredentialHasher) *Builder {
	b.hasher = h
	return b
}

// WithClock overrides the clock used for token timestamps and audit events.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the verify latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
// A Builder can be built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("identity store required")
	}
	if cfg.Security.EnableLoginThrottle && b.redis == nil {
		return nil, errors.New("Security EnableLoginThrottle requires redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("tokenauth")

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:  cfg,
		store:   b.store,
		logger:  logger,
		now:     now,
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	// -------- CREDENTIALS --------
	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewArgon2(password.Config{
			Memory:         cfg.Password.Memory,
			Time:           cfg.Password.Time,
			Parallelism:    cfg.Password.Parallelism,
			SaltLength:     cfg.Password.SaltLength,
			KeyLength:      cfg.Password.KeyLength,
			MinSecretBytes: cfg.Password.MinSecretBytes,
			MaxSecretBytes: cfg.Password.MaxSecretBytes,
		})
		if err != nil {
			return nil, err
		}
		hasher = ph
	}
	engine.hasher = hasher

	// Unknown-email logins verify against this hash so both failure paths
	// cost one full hash verification.
	dummy, err := hasher.Hash(dummySecret(cfg.Password.MinSecretBytes, cfg.Password.MaxSecretBytes))
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	engine.validate = newRegisterValidator(cfg)

	// -------- THROTTLE --------
	if cfg.Security.EnableLoginThrottle {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		})
	}

	// -------- AUDIT --------
	sinks := b.auditSinks
	if len(sinks) == 0 && cfg.Audit.Enabled {
		sinks = []AuditSink{NewZapSink(logger)}
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(ev AuditEvent) {
			logger.Warn("audit event dropped", zap.String("event_type", ev.EventType))
		},
	}, sinks...)

	b.built = true

	return engine, nil
}

// dummySecret returns a random secret of length 32 clamped to [minLen, maxLen].
func dummySecret(minLen, maxLen int) string {
	n := min(max(minLen, 32), maxLen)
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return b.String()[:n]
}

func newRegisterValidator(cfg Config) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	minUser, maxUser := cfg.Security.MinUsernameLength, cfg.Security.MaxUsernameLength
	minSecret, maxSecret := cfg.Password.MinSecretBytes, cfg.Password.MaxSecretBytes

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		req := sl.Current().Interface().(RegisterRequest)

		n := utf8.RuneCountInString(strings.TrimSpace(req.Username))
		if n < minUser || n > maxUser {
			sl.ReportError(req.Username, "username", "Username", "length", "")
		}
		if len(req.Secret) < minSecret || len(req.Secret) > maxSecret {
			sl.ReportError(req.Secret, "password", "Secret", "length", "")
		}
	}, RegisterRequest{})

	return v
}
