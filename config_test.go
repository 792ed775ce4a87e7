package tokenauth

import (
	"net/http"
	"testing"
	"time"
)

func TestDefaultConfigNeedsOnlySecrets(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without secrets to fail")
	}

	cfg.JWT.AccessSecret = []byte("access-secret-0123456789abcdef-0123")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-0123456789abcdef-012")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if cfg.ValidationMode != ModeStrict {
		t.Fatalf("expected strict default, got %v", cfg.ValidationMode)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "baseline",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name:      "jwt leeway valid",
			mutate:    func(c *Config) { c.JWT.Leeway = 45 * time.Second },
			wantValid: true,
		},
		{
			name:      "jwt leeway too large",
			mutate:    func(c *Config) { c.JWT.Leeway = 3 * time.Minute },
			wantValid: false,
		},
		{
			name:      "access ttl not shorter than refresh",
			mutate:    func(c *Config) { c.JWT.AccessTTL = c.JWT.RefreshTTL },
			wantValid: false,
		},
		{
			name:      "short access secret",
			mutate:    func(c *Config) { c.JWT.AccessSecret = []byte("short") },
			wantValid: false,
		},
		{
			name:      "equal secrets",
			mutate:    func(c *Config) { c.JWT.RefreshSecret = append([]byte(nil), c.JWT.AccessSecret...) },
			wantValid: false,
		},
		{
			name:      "blank issuer",
			mutate:    func(c *Config) { c.JWT.Issuer = "   " },
			wantValid: false,
		},
		{
			name:      "empty issuer allowed",
			mutate:    func(c *Config) { c.JWT.Issuer = "" },
			wantValid: true,
		},
		{
			name:      "password memory too low",
			mutate:    func(c *Config) { c.Password.Memory = 1024 },
			wantValid: false,
		},
		{
			name:      "secret bounds inverted",
			mutate:    func(c *Config) { c.Password.MaxSecretBytes = c.Password.MinSecretBytes - 1 },
			wantValid: false,
		},
		{
			name: "throttle without attempts",
			mutate: func(c *Config) {
				c.Security.EnableLoginThrottle = true
				c.Security.MaxLoginAttempts = 0
			},
			wantValid: false,
		},
		{
			name:      "ip throttle requires login throttle",
			mutate:    func(c *Config) { c.Security.EnableIPThrottle = true },
			wantValid: false,
		},
		{
			name:      "production requires secure cookie",
			mutate:    func(c *Config) { c.Security.ProductionMode = true },
			wantValid: false,
		},
		{
			name: "production with secure cookie",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Cookie.Secure = true
			},
			wantValid: true,
		},
		{
			name:      "samesite none requires secure",
			mutate:    func(c *Config) { c.Cookie.SameSite = http.SameSiteNoneMode },
			wantValid: false,
		},
		{
			name:      "cookie path must be absolute",
			mutate:    func(c *Config) { c.Cookie.Path = "refresh" },
			wantValid: false,
		},
		{
			name:      "store timeout required",
			mutate:    func(c *Config) { c.Store.OperationTimeout = 0 },
			wantValid: false,
		},
		{
			name: "audit buffer required when enabled",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name:      "inherit is not an engine mode",
			mutate:    func(c *Config) { c.ValidationMode = ModeInherit },
			wantValid: false,
		},
		{
			name:      "stateless mode",
			mutate:    func(c *Config) { c.ValidationMode = ModeStateless },
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWithConfigCopiesSecrets(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.AccessSecret[0] ^= 0xff

	if b.config.JWT.AccessSecret[0] == cfg.JWT.AccessSecret[0] {
		t.Fatal("builder config shares the caller's secret slice")
	}
}
