package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	testAccessSecret  = []byte("access-secret-access-secret-0123456789")
	testRefreshSecret = []byte("refresh-secret-refresh-secret-0123456789")
)

func testConfig(now func() time.Time) Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		Issuer:        "tokenauth-test",
		Now:           now,
	}
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m, err := NewManager(testConfig(clock.Now))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, clock
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m, clock := newTestManager(t)

	for _, kind := range []Kind{KindAccess, KindRefresh} {
		token, err := m.Issue(kind, "user-1", 7)
		if err != nil {
			t.Fatalf("issue %s: %v", kind, err)
		}
		if parts := strings.Split(token, "."); len(parts) != 3 {
			t.Fatalf("expected three dot-joined parts, got %d", len(parts))
		}

		claims, err := m.Verify(token, kind)
		if err != nil {
			t.Fatalf("verify %s: %v", kind, err)
		}
		if claims.Subject != "user-1" || claims.Counter != 7 || claims.Kind != kind {
			t.Fatalf("unexpected claims: %+v", claims)
		}
		wantExp := clock.now.Add(m.TTL(kind)).Unix()
		if claims.ExpiresAt.Unix() != wantExp {
			t.Fatalf("expected exp %d, got %d", wantExp, claims.ExpiresAt.Unix())
		}
	}
}

func TestIssueIsDeterministicForFixedClock(t *testing.T) {
	m, _ := newTestManager(t)

	a, err := m.Issue(KindAccess, "user-1", 2)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	b, err := m.Issue(KindAccess, "user-1", 2)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if a != b {
		t.Fatal("expected identical tokens for identical inputs and clock")
	}
}

func TestVerifyRejectsOtherKind(t *testing.T) {
	m, _ := newTestManager(t)

	access, _ := m.Issue(KindAccess, "user-1", 0)
	if _, err := m.Verify(access, KindRefresh); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected access token to fail refresh verification with ErrBadSignature, got %v", err)
	}

	refresh, _ := m.Issue(KindRefresh, "user-1", 0)
	if _, err := m.Verify(refresh, KindAccess); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected refresh token to fail access verification with ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsKindClaimMismatchUnderSameSecret(t *testing.T) {
	m, clock := newTestManager(t)

	claims := Claims{
		Kind: KindRefresh,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "tokenauth-test",
			IssuedAt:  gjwt.NewNumericDate(clock.now),
			ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testAccessSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(token, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	m, clock := newTestManager(t)

	token, err := m.Issue(KindAccess, "user-1", 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.now = clock.now.Add(15*time.Minute + time.Second)
	if _, err := m.Verify(token, KindAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// refresh tokens outlive access tokens
	refresh, _ := m.Issue(KindRefresh, "user-1", 0)
	clock.now = clock.now.Add(24 * time.Hour)
	if _, err := m.Verify(refresh, KindRefresh); err != nil {
		t.Fatalf("expected refresh token to remain valid: %v", err)
	}
}

func TestVerifyLeewayExtendsExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cfg := testConfig(clock.Now)
	cfg.Leeway = 30 * time.Second
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _ := m.Issue(KindAccess, "user-1", 0)
	clock.now = clock.now.Add(15*time.Minute + 10*time.Second)
	if _, err := m.Verify(token, KindAccess); err != nil {
		t.Fatalf("expected token inside leeway to verify: %v", err)
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	m, clock := newTestManager(t)

	token, _ := m.Issue(KindAccess, "user-1", 0)
	forged, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{
		Kind:    KindAccess,
		Counter: 0,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    "tokenauth-test",
			IssuedAt:  gjwt.NewNumericDate(clock.now),
			ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
		},
	}).SignedString([]byte("attacker-secret-attacker-secret-0000"))

	parts := strings.Split(token, ".")
	forgedParts := strings.Split(forged, ".")
	spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]

	for name, candidate := range map[string]string{"forged": forged, "spliced": spliced} {
		if _, err := m.Verify(candidate, KindAccess); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("%s: expected ErrBadSignature, got %v", name, err)
		}
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	m, clock := newTestManager(t)

	claims := Claims{
		Kind: KindAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "tokenauth-test",
			ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
		},
	}
	hs512, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(testAccessSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	for name, token := range map[string]string{"hs512": hs512, "none": none} {
		if _, err := m.Verify(token, KindAccess); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("%s: expected ErrBadSignature, got %v", name, err)
		}
	}
}

func TestVerifyMalformed(t *testing.T) {
	m, _ := newTestManager(t)

	for _, input := range []string{"", "abc", "a.b.c", "only.two"} {
		if _, err := m.Verify(input, KindAccess); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", input, err)
		}
	}
	if _, err := m.Verify("a.b.c", Kind("session")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("unknown kind: expected ErrMalformed, got %v", err)
	}
}

func TestVerifyIssuerMismatch(t *testing.T) {
	m, clock := newTestManager(t)

	token, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{
		Kind: KindAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "someone-else",
			ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
		},
	}).SignedString(testAccessSecret)

	if _, err := m.Verify(token, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }},
		{"access ttl not shorter", func(c *Config) { c.AccessTTL = c.RefreshTTL }},
		{"short access secret", func(c *Config) { c.AccessSecret = []byte("short") }},
		{"short refresh secret", func(c *Config) { c.RefreshSecret = []byte("short") }},
		{"shared secret", func(c *Config) { c.RefreshSecret = c.AccessSecret }},
		{"negative leeway", func(c *Config) { c.Leeway = -time.Second }},
		{"huge leeway", func(c *Config) { c.Leeway = time.Hour }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(nil)
			tt.mutate(&cfg)
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}

func TestIssueRejectsEmptySubjectAndUnknownKind(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.Issue(KindAccess, "", 0); err == nil {
		t.Fatal("expected empty subject to fail")
	}
	if _, err := m.Issue(Kind("session"), "user-1", 0); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
}
