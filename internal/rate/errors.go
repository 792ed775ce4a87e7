package rate

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited means the email or client IP has no failed attempts left
	// in the current window.
	ErrRateLimited = errors.New("login throttled")
	// ErrRedisUnavailable marks a failed throttle round trip. Callers treat it
	// as a backend outage, not a throttle decision.
	ErrRedisUnavailable = errors.New("throttle backend unavailable")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrRedisUnavailable, op, err)
}
