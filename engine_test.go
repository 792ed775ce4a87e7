package tokenauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/tokenauth/identity"
	"github.com/MrEthical07/tokenauth/identity/memstore"
	"github.com/MrEthical07/tokenauth/identity/redisstore"
	"github.com/MrEthical07/tokenauth/jwt"
)

const testSecret = "correct-secret-123"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-0123456789abcdef-0123")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-0123456789abcdef-012")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type engineFixture struct {
	engine *Engine
	store  identity.Store
	clock  *testClock
}

func newTestEngine(t testing.TB, mutate func(*Config)) *engineFixture {
	t.Helper()
	return newTestEngineWithStore(t, memstore.New(), mutate)
}

func newTestEngineWithStore(t testing.TB, store identity.Store, mutate func(*Config)) *engineFixture {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clock := newTestClock()

	engine, err := New().
		WithConfig(cfg).
		WithIdentityStore(store).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &engineFixture{engine: engine, store: store, clock: clock}
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func newRedisTestEngine(t testing.TB, mutate func(*Config)) (*engineFixture, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clock := newTestClock()
	store := redisstore.New(rdb, "test")

	engine, err := New().
		WithConfig(cfg).
		WithIdentityStore(store).
		WithRedis(rdb).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &engineFixture{engine: engine, store: store, clock: clock}, mr
}

func (f *engineFixture) register(t testing.TB, email string) *PublicIdentity {
	t.Helper()
	res := f.engine.Register(context.Background(), RegisterRequest{
		Email:    email,
		Username: "user",
		Secret:   testSecret,
	})
	if !res.OK() {
		t.Fatalf("register %s: outcome=%v fields=%v", email, res.Outcome, res.Fields)
	}
	return res.Identity
}

func (f *engineFixture) login(t testing.TB, email string) LoginResult {
	t.Helper()
	res := f.engine.Login(context.Background(), email, testSecret)
	if res.Outcome != LoginSucceeded {
		t.Fatalf("login %s: outcome=%v", email, res.Outcome)
	}
	return res
}

func TestLoginRoundTrip(t *testing.T) {
	f := newTestEngine(t, nil)
	id := f.register(t, "alice@example.com")

	res := f.login(t, "alice@example.com")
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if res.Err() != nil {
		t.Fatalf("expected nil Err on success, got %v", res.Err())
	}
	if res.Identity == nil || res.Identity.ID != id.ID {
		t.Fatalf("unexpected identity %+v", res.Identity)
	}

	got, err := f.engine.VerifyToken(res.AccessToken, AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if got.SubjectID != id.ID || got.RevocationCounter != 0 {
		t.Fatalf("unexpected request identity %+v", got)
	}

	got, err = f.engine.VerifyToken(res.RefreshToken, RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if got.SubjectID != id.ID {
		t.Fatalf("unexpected refresh subject %q", got.SubjectID)
	}
}

func TestLoginNormalizesEmail(t *testing.T) {
	f := newTestEngine(t, nil)
	f.register(t, "Bob@Example.com")

	res := f.engine.Login(context.Background(), "  bob@EXAMPLE.com ", testSecret)
	if res.Outcome != LoginSucceeded {
		t.Fatalf("expected success, got %v", res.Outcome)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newTestEngine(t, nil)
	f.register(t, "alice@example.com")

	wrongSecret := f.engine.Login(context.Background(), "alice@example.com", "wrong-secret-000")
	unknownEmail := f.engine.Login(context.Background(), "nobody@example.com", testSecret)

	for name, res := range map[string]LoginResult{"wrong secret": wrongSecret, "unknown email": unknownEmail} {
		if res.Outcome != LoginInvalidCredentials {
			t.Fatalf("%s: expected LoginInvalidCredentials, got %v", name, res.Outcome)
		}
		if !errors.Is(res.Err(), ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, res.Err())
		}
		if res.AccessToken != "" || res.RefreshToken != "" || res.Identity != nil {
			t.Fatalf("%s: failure leaked data: %+v", name, res)
		}
	}
	if wrongSecret.Err().Error() != unknownEmail.Err().Error() {
		t.Fatal("failure messages differ")
	}
}

func TestLoginOverlongSecretIsInvalidCredentials(t *testing.T) {
	f := newTestEngine(t, func(c *Config) { c.Password.MaxSecretBytes = 32 })
	f.register(t, "alice@example.com")

	res := f.engine.Login(context.Background(), "alice@example.com", string(make([]byte, 64)))
	if res.Outcome != LoginInvalidCredentials {
		t.Fatalf("expected LoginInvalidCredentials, got %v", res.Outcome)
	}
}

func TestBuildAtSecretLengthBounds(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
	}{
		{"short max", 1, 20},
		{"long min", 40, 64},
		{"single length", 12, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Password.MinSecretBytes = tt.min
			cfg.Password.MaxSecretBytes = tt.max
			engine, err := New().WithConfig(cfg).WithIdentityStore(memstore.New()).Build()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			defer engine.Close()

			res := engine.Login(context.Background(), "nobody@example.com", strings.Repeat("x", tt.min))
			if res.Outcome != LoginInvalidCredentials {
				t.Fatalf("expected LoginInvalidCredentials, got %v", res.Outcome)
			}
		})
	}
}

func TestDummySecretLength(t *testing.T) {
	for _, tc := range [][3]int{{1, 20, 20}, {40, 64, 40}, {8, 1024, 32}, {100, 200, 100}} {
		if got := len(dummySecret(tc[0], tc[1])); got != tc[2] {
			t.Fatalf("dummySecret(%d, %d) length = %d, want %d", tc[0], tc[1], got, tc[2])
		}
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	f := newTestEngine(t, nil)
	id := PublicIdentity{ID: "user-1", RevocationCounter: 7}

	for _, kind := range []TokenKind{AccessToken, RefreshToken} {
		token, err := f.engine.IssueToken(id, kind)
		if err != nil {
			t.Fatalf("issue %s: %v", kind, err)
		}
		again, err := f.engine.IssueToken(id, kind)
		if err != nil {
			t.Fatalf("issue %s: %v", kind, err)
		}
		if token != again {
			t.Fatalf("%s: expected identical tokens at a fixed clock", kind)
		}

		got, err := f.engine.VerifyToken(token, kind)
		if err != nil {
			t.Fatalf("verify %s: %v", kind, err)
		}
		if got.SubjectID != "user-1" || got.RevocationCounter != 7 {
			t.Fatalf("%s: unexpected identity %+v", kind, got)
		}
	}
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	f := newTestEngine(t, nil)
	id := PublicIdentity{ID: "user-1"}

	refresh, err := f.engine.IssueToken(id, RefreshToken)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.engine.VerifyToken(refresh, AccessToken); !errors.Is(err, jwt.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for refresh-as-access, got %v", err)
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	f := newTestEngine(t, nil)
	id := f.register(t, "alice@example.com")
	res := f.login(t, "alice@example.com")

	f.clock.Advance(testConfig().JWT.AccessTTL - time.Second)
	if _, err := f.engine.VerifyToken(res.AccessToken, AccessToken); err != nil {
		t.Fatalf("expected token valid just before expiry, got %v", err)
	}

	f.clock.Advance(time.Second)
	if _, err := f.engine.VerifyToken(res.AccessToken, AccessToken); !errors.Is(err, jwt.ErrExpired) {
		t.Fatalf("expected ErrExpired at expiry, got %v", err)
	}
	if _, err := f.engine.VerifyAndAuthorize(context.Background(), res.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	// refresh outlives access
	pair, err := f.engine.Refresh(context.Background(), res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh after access expiry: %v", err)
	}
	got, err := f.engine.VerifyAndAuthorize(context.Background(), pair.AccessToken)
	if err != nil || got.SubjectID != id.ID {
		t.Fatalf("refreshed access rejected: %v", err)
	}
}

func TestRevocationScenario(t *testing.T) {
	f := newTestEngine(t, nil)
	id := f.register(t, "alice@example.com")
	ctx := context.Background()

	t1 := f.login(t, "alice@example.com")
	if _, err := f.engine.VerifyAndAuthorize(ctx, t1.AccessToken); err != nil {
		t.Fatalf("T1 rejected before revoke: %v", err)
	}

	counter, err := f.engine.Revoke(ctx, id.ID)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if counter != 1 {
		t.Fatalf("expected counter 1, got %d", counter)
	}

	if _, err := f.engine.VerifyAndAuthorize(ctx, t1.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected T1 rejected after revoke, got %v", err)
	}
	if _, err := f.engine.Refresh(ctx, t1.RefreshToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected T1 refresh rejected after revoke, got %v", err)
	}
	if got := f.engine.CurrentIdentity(ctx, "Bearer "+t1.AccessToken); got != nil {
		t.Fatalf("expected nil identity for revoked token, got %+v", got)
	}

	// signature and expiry are still fine; only the counter differs
	if _, err := f.engine.VerifyToken(t1.AccessToken, AccessToken); err != nil {
		t.Fatalf("expected stateless verify to pass, got %v", err)
	}

	t2 := f.login(t, "alice@example.com")
	got, err := f.engine.VerifyAndAuthorize(ctx, t2.AccessToken)
	if err != nil {
		t.Fatalf("T2 rejected: %v", err)
	}
	if got.RevocationCounter != 1 {
		t.Fatalf("expected T2 counter 1, got %d", got.RevocationCounter)
	}
}

func TestRevokeUnknownSubject(t *testing.T) {
	f := newTestEngine(t, nil)

	if _, err := f.engine.Revoke(context.Background(), "missing"); !errors.Is(err, ErrRevocationTargetNotFound) {
		t.Fatalf("expected ErrRevocationTargetNotFound, got %v", err)
	}
	if _, err := f.engine.Revoke(context.Background(), ""); !errors.Is(err, ErrRevocationTargetNotFound) {
		t.Fatalf("expected ErrRevocationTargetNotFound for empty id, got %v", err)
	}
}

func TestRegisterDuplicateLeavesSingleRecord(t *testing.T) {
	store := memstore.New()
	f := newTestEngineWithStore(t, store, nil)
	f.register(t, "alice@example.com")

	res := f.engine.Register(context.Background(), RegisterRequest{
		Email:    "ALICE@example.com",
		Username: "other",
		Secret:   "another-secret-456",
	})
	if res.Outcome != RegisterDuplicate || res.OK() {
		t.Fatalf("expected RegisterDuplicate, got %v", res.Outcome)
	}
	if !errors.Is(res.Err(), ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", res.Err())
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", store.Len())
	}

	// the original credentials still work
	f.login(t, "alice@example.com")
}

func TestRegisterValidation(t *testing.T) {
	f := newTestEngine(t, nil)

	tests := []struct {
		name  string
		req   RegisterRequest
		field string
	}{
		{"missing email", RegisterRequest{Username: "u", Secret: testSecret}, "email"},
		{"bad email", RegisterRequest{Email: "not-an-email", Username: "u", Secret: testSecret}, "email"},
		{"short secret", RegisterRequest{Email: "a@example.com", Username: "u", Secret: "short"}, "password"},
		{"blank username", RegisterRequest{Email: "a@example.com", Username: "   ", Secret: testSecret}, "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.engine.Register(context.Background(), tt.req)
			if res.Outcome != RegisterInvalid {
				t.Fatalf("expected RegisterInvalid, got %v", res.Outcome)
			}
			if !errors.Is(res.Err(), ErrRegistrationInvalid) {
				t.Fatalf("expected ErrRegistrationInvalid, got %v", res.Err())
			}
			found := false
			for _, fld := range res.Fields {
				if fld == tt.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected field %q in %v", tt.field, res.Fields)
			}
		})
	}
}

func TestRegisterStoresHashNotSecret(t *testing.T) {
	store := memstore.New()
	f := newTestEngineWithStore(t, store, nil)
	id := f.register(t, "alice@example.com")

	u, err := store.FindByID(context.Background(), id.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u.CredentialHash == testSecret || u.CredentialHash == "" {
		t.Fatalf("unexpected stored hash %q", u.CredentialHash)
	}
	if u.RevocationCounter != 0 {
		t.Fatalf("expected counter 0, got %d", u.RevocationCounter)
	}
}

func TestCurrentIdentity(t *testing.T) {
	f := newTestEngine(t, nil)
	id := f.register(t, "alice@example.com")
	res := f.login(t, "alice@example.com")
	ctx := context.Background()

	got := f.engine.CurrentIdentity(ctx, "Bearer "+res.AccessToken)
	if got == nil || got.ID != id.ID || got.Email != "alice@example.com" {
		t.Fatalf("unexpected identity %+v", got)
	}

	for _, header := range []string{"", "Bearer", "Bearer ", "Basic abc", "Bearer garbage", "Bearer " + res.RefreshToken} {
		if got := f.engine.CurrentIdentity(ctx, header); got != nil {
			t.Fatalf("header %q: expected nil, got %+v", header, got)
		}
	}
}

func TestBuildRequiresStoreAndSecrets(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without identity store")
	}

	cfg := testConfig()
	cfg.JWT.RefreshSecret = cfg.JWT.AccessSecret
	if _, err := New().WithConfig(cfg).WithIdentityStore(memstore.New()).Build(); err == nil {
		t.Fatal("expected error for equal secrets")
	}

	cfg = testConfig()
	cfg.Security.EnableLoginThrottle = true
	if _, err := New().WithConfig(cfg).WithIdentityStore(memstore.New()).Build(); err == nil {
		t.Fatal("expected error for throttle without redis")
	}

	b := New().WithConfig(testConfig()).WithIdentityStore(memstore.New())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestNilEngineIsNotReady(t *testing.T) {
	var e *Engine
	ctx := context.Background()

	if res := e.Login(ctx, "a@example.com", testSecret); res.Outcome != LoginUnavailable {
		t.Fatalf("expected LoginUnavailable, got %v", res.Outcome)
	}
	if res := e.Register(ctx, RegisterRequest{}); res.Outcome != RegisterFailed {
		t.Fatalf("expected RegisterFailed, got %v", res.Outcome)
	}
	if _, err := e.Revoke(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if got := e.CurrentIdentity(ctx, "Bearer x"); got != nil {
		t.Fatal("expected nil identity")
	}
	e.Close()
}

func TestLoginThrottle(t *testing.T) {
	f, _ := newRedisTestEngine(t, func(c *Config) {
		c.Security.EnableLoginThrottle = true
		c.Security.MaxLoginAttempts = 3
	})
	f.register(t, "alice@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if res := f.engine.Login(ctx, "alice@example.com", "wrong-secret-000"); res.Outcome != LoginInvalidCredentials {
			t.Fatalf("attempt %d: expected LoginInvalidCredentials, got %v", i, res.Outcome)
		}
	}

	res := f.engine.Login(ctx, "alice@example.com", testSecret)
	if res.Outcome != LoginRateLimited {
		t.Fatalf("expected LoginRateLimited, got %v", res.Outcome)
	}
	if !errors.Is(res.Err(), ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", res.Err())
	}
}

func TestLoginThrottleResetsOnSuccess(t *testing.T) {
	f, mr := newRedisTestEngine(t, func(c *Config) {
		c.Security.EnableLoginThrottle = true
		c.Security.MaxLoginAttempts = 3
	})
	f.register(t, "alice@example.com")
	ctx := context.Background()

	f.engine.Login(ctx, "alice@example.com", "wrong-secret-000")
	f.engine.Login(ctx, "alice@example.com", "wrong-secret-000")
	f.login(t, "alice@example.com")

	if mr.Exists("tl:alice@example.com") {
		t.Fatal("expected throttle counter cleared after success")
	}
}

func TestRedisDownIsUnavailable(t *testing.T) {
	f, mr := newRedisTestEngine(t, nil)
	id := f.register(t, "alice@example.com")
	res := f.login(t, "alice@example.com")
	mr.Close()
	ctx := context.Background()

	if got := f.engine.Login(ctx, "alice@example.com", testSecret); got.Outcome != LoginUnavailable {
		t.Fatalf("expected LoginUnavailable, got %v", got.Outcome)
	}
	if _, err := f.engine.Revoke(ctx, id.ID); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := f.engine.VerifyAndAuthorize(ctx, res.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if got := f.engine.Register(ctx, RegisterRequest{Email: "b@example.com", Username: "b", Secret: testSecret}); got.Outcome != RegisterFailed {
		t.Fatalf("expected RegisterFailed, got %v", got.Outcome)
	}
}

// slowStore blocks every call until the context is done.
type slowStore struct{ identity.Store }

func (slowStore) FindByID(ctx context.Context, _ string) (*identity.UserIdentity, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowStore) FindByEmail(ctx context.Context, _ string) (*identity.UserIdentity, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStoreTimeoutFailsClosed(t *testing.T) {
	f := newTestEngineWithStore(t, slowStore{memstore.New()}, func(c *Config) {
		c.Store.OperationTimeout = 20 * time.Millisecond
	})
	ctx := context.Background()

	token, err := f.engine.IssueToken(PublicIdentity{ID: "user-1"}, AccessToken)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.engine.VerifyAndAuthorize(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated on timeout, got %v", err)
	}
	if res := f.engine.Login(ctx, "a@example.com", testSecret); res.Outcome != LoginUnavailable {
		t.Fatalf("expected LoginUnavailable on timeout, got %v", res.Outcome)
	}
}
