package tokenauth

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const minSecretBytes = 32

// Config is the full engine configuration. Build it from DefaultConfig,
// override fields, and pass it to Builder.WithConfig. The engine keeps its
// own copy; later mutations of the caller's value have no effect.
type Config struct {
	JWT            JWTConfig
	Password       PasswordConfig
	Security       SecurityConfig
	Store          StoreConfig
	Cookie         CookieConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	ValidationMode ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds token lifetimes and the two HMAC secrets.
//
// AccessSecret and RefreshSecret must each be at least 32 bytes and must
// differ. They are never logged.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters and the accepted secret length.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinSecretBytes int
	MaxSecretBytes int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls login throttling and registration policy.
type SecurityConfig struct {
	ProductionMode        bool
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	MinUsernameLength     int
	MaxUsernameLength     int
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig bounds every identity store call.
type StoreConfig struct {
	OperationTimeout time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig describes the HttpOnly cookie that carries the refresh token.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ValidationMode selects how the gate authorizes an access token.
type ValidationMode int

const (
	// ModeInherit uses the engine's configured mode. Only valid per route.
	ModeInherit ValidationMode = -1

	// ModeStateless trusts a verified token without consulting the store.
	// Revocation takes effect only when the access token expires.
	ModeStateless ValidationMode = iota
	// ModeStrict verifies the token and compares its revocation counter with
	// the live counter in the identity store.
	ModeStrict
)

// RouteMode is the per-route override mode for gates.
// It reuses the ValidationMode constants.
type RouteMode = ValidationMode

// String returns the mode name used in logs and audit metadata.
func (m ValidationMode) String() string {
	switch m {
	case ModeInherit:
		return "inherit"
	case ModeStateless:
		return "stateless"
	case ModeStrict:
		return "strict"
	default:
		return fmt.Sprintf("ValidationMode(%d)", int(m))
	}
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every field set except the JWT
// secrets, which callers must supply.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "tokenauth",
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinSecretBytes: 8,
			MaxSecretBytes: 1024,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   false,
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			MinUsernameLength:     1,
			MaxUsernameLength:     64,
		},
		Store: StoreConfig{
			OperationTimeout: 2 * time.Second,
		},
		Cookie: CookieConfig{
			Name:     "jid",
			Path:     "/refresh_token",
			SameSite: http.SameSiteLaxMode,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		ValidationMode: ModeStrict,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error, or nil.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}
	if len(c.JWT.AccessSecret) < minSecretBytes {
		return fmt.Errorf("JWT AccessSecret must be at least %d bytes", minSecretBytes)
	}
	if len(c.JWT.RefreshSecret) < minSecretBytes {
		return fmt.Errorf("JWT RefreshSecret must be at least %d bytes", minSecretBytes)
	}
	if bytes.Equal(c.JWT.AccessSecret, c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.Issuer != "" && strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must not be blank")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinSecretBytes < 1 {
		return errors.New("Password MinSecretBytes must be >= 1")
	}
	if c.Password.MaxSecretBytes < c.Password.MinSecretBytes {
		return errors.New("Password MaxSecretBytes must be >= MinSecretBytes")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0 when login throttling is enabled")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security LoginCooldownDuration must be > 0 when login throttling is enabled")
		}
	}
	if c.Security.EnableIPThrottle && !c.Security.EnableLoginThrottle {
		return errors.New("Security EnableIPThrottle requires EnableLoginThrottle")
	}
	if c.Security.MinUsernameLength < 1 {
		return errors.New("Security MinUsernameLength must be >= 1")
	}
	if c.Security.MaxUsernameLength < c.Security.MinUsernameLength {
		return errors.New("Security MaxUsernameLength must be >= MinUsernameLength")
	}
	if c.Security.ProductionMode && !c.Cookie.Secure {
		return errors.New("Cookie Secure must be true in ProductionMode")
	}

	// Store
	if c.Store.OperationTimeout <= 0 {
		return errors.New("Store OperationTimeout must be > 0")
	}

	// Cookie
	if strings.TrimSpace(c.Cookie.Name) == "" {
		return errors.New("Cookie Name must not be empty")
	}
	if !strings.HasPrefix(c.Cookie.Path, "/") {
		return errors.New("Cookie Path must start with /")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Validation mode
	switch c.ValidationMode {
	case ModeStateless, ModeStrict:
	default:
		return errors.New("ValidationMode must be ModeStateless or ModeStrict")
	}

	return nil
}
