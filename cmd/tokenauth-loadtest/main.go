// Command tokenauth-loadtest drives concurrent strict validation and
// revocation against a Redis-backed identity store, then checks that every
// revocation landed exactly once.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/identity"
	"github.com/MrEthical07/tokenauth/identity/redisstore"
)

type subject struct {
	id    string
	token string
	// revokes counts successful Revoke calls issued by the load test.
	revokes atomic.Uint64
}

func main() {
	var (
		identities  = flag.Int("identities", 10000, "number of identities to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (validate + revoke)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "loadtest", "identity key prefix")
		verbose     = flag.Bool("v", false, "log engine warnings")
	)
	flag.Parse()

	if *identities <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "identities, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	if err := run(context.Background(), *identities, *concurrency, *ops, *redisAddr, *prefix, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, identities, concurrency, ops int, addr, prefix string, verbose bool) error {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	logger := zap.NewNop()
	if verbose {
		logger, _ = zap.NewDevelopment()
	}

	store := redisstore.New(client, prefix)
	engine, err := newEngine(store, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Printf("seeding %d identities...\n", identities)
	startSeed := time.Now()
	subjects, err := seed(ctx, engine, store, identities)
	if err != nil {
		return err
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats, err := runValidatePhase(ctx, engine, subjects, ops, concurrency)
	if err != nil {
		return err
	}
	revokeStats, err := runRevokePhase(ctx, engine, subjects, ops, concurrency)
	if err != nil {
		return err
	}

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("revoke", revokeStats)

	return checkCounters(ctx, store, subjects)
}

func newEngine(store identity.Store, logger *zap.Logger) (*tokenauth.Engine, error) {
	cfg := tokenauth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("loadtest-access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("loadtest-refresh-secret-0123456789abcdef")
	cfg.JWT.AccessTTL = time.Hour
	cfg.Metrics.Enabled = true

	return tokenauth.New().
		WithConfig(cfg).
		WithIdentityStore(store).
		WithLogger(logger).
		Build()
}

// seed inserts identities directly into the store, skipping credential
// hashing, and issues one access token per identity at counter zero.
func seed(ctx context.Context, engine *tokenauth.Engine, store identity.Store, n int) ([]*subject, error) {
	subjects := make([]*subject, n)
	for i := 0; i < n; i++ {
		u, err := store.Insert(ctx, identity.UserIdentity{
			Email:          fmt.Sprintf("user-%d@loadtest.local", i),
			Username:       fmt.Sprintf("user-%d", i),
			CredentialHash: "unused",
		})
		if err != nil {
			return nil, fmt.Errorf("insert identity %d: %w", i, err)
		}
		token, err := engine.IssueToken(tokenauth.PublicIdentity{ID: u.ID}, tokenauth.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("issue token %d: %w", i, err)
		}
		subjects[i] = &subject{id: u.ID, token: token}
	}
	return subjects, nil
}

// runWorkers spreads ops calls of fn over concurrency goroutines and records
// the latency of each call.
func runWorkers(ctx context.Context, ops, concurrency int, fn func(r *rand.Rand) error) (phaseStats, error) {
	var (
		cursor   atomic.Int64
		failures atomic.Int64
		rec      = newRecorder(ops)
	)

	g, gCtx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < concurrency; w++ {
		src := time.Now().UnixNano() + int64(w)*7919
		g.Go(func() error {
			r := rand.New(rand.NewSource(src))
			for {
				if int(cursor.Add(1)) > ops {
					return nil
				}
				if err := gCtx.Err(); err != nil {
					return err
				}
				t0 := time.Now()
				err := fn(r)
				rec.add(time.Since(t0))
				if err != nil {
					failures.Add(1)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return computeStats(time.Since(start), rec.samples(), failures.Load()), nil
}

// runValidatePhase runs strict validation with tokens that are still current.
func runValidatePhase(ctx context.Context, engine *tokenauth.Engine, subjects []*subject, ops, concurrency int) (phaseStats, error) {
	return runWorkers(ctx, ops, concurrency, func(r *rand.Rand) error {
		s := subjects[r.Intn(len(subjects))]
		_, err := engine.Validate(ctx, s.token, tokenauth.ModeStrict)
		return err
	})
}

// runRevokePhase revokes random identities concurrently; collisions on the
// same identity are expected and exercise the atomic increment.
func runRevokePhase(ctx context.Context, engine *tokenauth.Engine, subjects []*subject, ops, concurrency int) (phaseStats, error) {
	return runWorkers(ctx, ops, concurrency, func(r *rand.Rand) error {
		s := subjects[r.Intn(len(subjects))]
		if _, err := engine.Revoke(ctx, s.id); err != nil {
			return err
		}
		s.revokes.Add(1)
		return nil
	})
}

var errLostIncrement = errors.New("revocation counter does not match successful revokes")

// checkCounters compares each stored counter with the revokes that succeeded.
func checkCounters(ctx context.Context, store identity.Store, subjects []*subject) error {
	var mismatched, revoked int
	for _, s := range subjects {
		u, err := store.FindByID(ctx, s.id)
		if err != nil {
			return fmt.Errorf("find %s: %w", s.id, err)
		}
		want := s.revokes.Load()
		if u.RevocationCounter != want {
			mismatched++
			if mismatched <= 10 {
				fmt.Fprintf(os.Stderr, "identity %s: counter=%d revokes=%d\n", s.id, u.RevocationCounter, want)
			}
		}
		if want > 0 {
			revoked++
		}
	}
	fmt.Printf("counters: identities=%d revoked=%d mismatched=%d\n", len(subjects), revoked, mismatched)
	if mismatched > 0 {
		return fmt.Errorf("%w: %d identities", errLostIncrement, mismatched)
	}
	return nil
}
