// Package rate provides the Redis-backed failed-login throttle used by the
// engine when login throttling is enabled.
//
// # Window semantics
//
// Fixed-window counters. A check is one pipelined GET over the attempt's keys; a
// failure is one pipelined INCR, plus a pipelined EXPIRE for keys that just
// opened a window. Key prefixes:
//   - "tl:" counts failed logins per normalized email
//   - "tli:" counts failed logins per client IP
//
// A key blocks further attempts once its counter reaches MaxLoginAttempts and
// unblocks when the window expires or ResetLogin runs after a success.
package rate
