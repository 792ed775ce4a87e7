package rate

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	loginSubjectPrefix = "tl:"
	loginIPPrefix      = "tli:"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// Limiter tracks failed logins per email and, optionally, per client IP in
// Redis fixed-window counters.
type Limiter struct {
	rdb    redis.UniversalClient
	config Config
}

// New returns a Limiter using rdb.
func New(rdb redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{rdb: rdb, config: cfg}
}

// keys returns the counters an attempt touches: the email key first, then the
// IP key when IP throttling applies.
func (l *Limiter) keys(email, ip string) []string {
	keys := []string{loginSubjectPrefix + email}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPPrefix+ip)
	}
	return keys
}

func (l *Limiter) exhausted(count int64) bool {
	return count >= int64(l.config.MaxLoginAttempts)
}

// CheckLogin reports ErrRateLimited when any counter for the attempt has
// reached MaxLoginAttempts. Counters are read in one pipeline; a cluster
// client splits it per slot.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	keys := l.keys(email, ip)
	gets := make([]*redis.StringCmd, len(keys))
	_, err := l.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			gets[i] = p.Get(ctx, k)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable("check", err)
	}
	for _, cmd := range gets {
		n, err := cmd.Int64()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			return unavailable("check", err)
		}
		if l.exhausted(n) {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records one failed attempt on every counter for the attempt
// and returns ErrRateLimited when that pushed any of them past the budget.
// The first hit in a window sets the window TTL.
func (l *Limiter) IncrementLogin(ctx context.Context, email, ip string) error {
	keys := l.keys(email, ip)

	incrs := make([]*redis.IntCmd, len(keys))
	_, err := l.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			incrs[i] = p.Incr(ctx, k)
		}
		return nil
	})
	if err != nil {
		return unavailable("increment", err)
	}

	var fresh []string
	limited := false
	for i, cmd := range incrs {
		n := cmd.Val()
		if n == 1 {
			fresh = append(fresh, keys[i])
		}
		if n > int64(l.config.MaxLoginAttempts) {
			limited = true
		}
	}

	if len(fresh) > 0 {
		_, err := l.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
			for _, k := range fresh {
				p.Expire(ctx, k, l.config.LoginCooldownDuration)
			}
			return nil
		})
		if err != nil {
			return unavailable("expire", err)
		}
	}

	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, email, ip string) error {
	if err := l.rdb.Del(ctx, l.keys(email, ip)...).Err(); err != nil {
		return unavailable("reset", err)
	}
	return nil
}
