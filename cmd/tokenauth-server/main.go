// Command tokenauth-server serves the tokenauth HTTP API.
//
// Configuration comes from the environment (and an optional .env file):
// ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required, IDENTITY_STORE
// selects memory, redis or postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/identity"
	"github.com/MrEthical07/tokenauth/identity/memstore"
	"github.com/MrEthical07/tokenauth/identity/pgstore"
	"github.com/MrEthical07/tokenauth/identity/redisstore"
	"github.com/MrEthical07/tokenauth/internal/httpapi"
	"github.com/MrEthical07/tokenauth/metrics/export/prometheus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tokenauth-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel, cfg.Production)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	builder := tokenauth.New().
		WithConfig(engineCfg).
		WithIdentityStore(backend.store).
		WithLogger(logger)
	if backend.redis != nil {
		builder = builder.WithRedis(backend.redis)
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.NewRouter(engine, logger, httpapi.Options{
			Metrics:        prometheus.NewPrometheusExporter(engine).Handler(),
			RequestTimeout: cfg.RequestTimeout,
			TrustProxy:     cfg.TrustProxy,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting server",
		zap.String("addr", cfg.Addr),
		zap.String("identity_store", cfg.Store),
		zap.Stringer("validation_mode", engineCfg.ValidationMode),
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited", zap.Uint64("audit_dropped", engine.AuditDropped()))
	return nil
}

type backend struct {
	store identity.Store
	redis redis.UniversalClient
	close func()
}

// openBackend connects the identity store. Redis is also opened for the
// login throttle when it is enabled.
func openBackend(ctx context.Context, cfg serverConfig) (*backend, error) {
	b := &backend{close: func() {}}

	if cfg.Store == "redis" || cfg.LoginThrottle {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		b.redis = rdb
		b.close = func() { _ = rdb.Close() }
	}

	switch cfg.Store {
	case "memory":
		b.store = memstore.New()
	case "redis":
		b.store = redisstore.New(b.redis, cfg.RedisPrefix)
	case "postgres":
		pool, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			b.close()
			return nil, err
		}
		store := pgstore.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			b.close()
			return nil, err
		}
		closeRedis := b.close
		b.close = func() {
			pool.Close()
			closeRedis()
		}
		b.store = store
	}
	return b, nil
}
