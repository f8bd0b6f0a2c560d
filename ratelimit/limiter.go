package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nhalm/canonlog"

	"github.com/gatekit/gatekit/ratelimit/store"
)

// LimitExceededError is the only error that crosses the subsystem
// boundary. It carries the violated limit spec and the epoch second at
// which the window resets.
type LimitExceededError struct {
	Limit   string
	ResetAt int64
}

// Error implements the error interface.
func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit %s exceeded", e.Limit)
}

// RetryAfter returns the seconds until the window resets, never less
// than one, suitable for a Retry-After header.
func (e *LimitExceededError) RetryAfter() int {
	secs := e.ResetAt - time.Now().Unix()
	if secs < 1 {
		return 1
	}
	return int(secs)
}

// Limiter is the admission-control facade. One shared instance serves
// all concurrent requests in the process; it holds no per-request
// state beyond the backend's counters.
type Limiter struct {
	store    store.Store
	disabled bool
	timeout  time.Duration
	metrics  *Metrics
	fallback bool
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithDisabled turns the limiter into a pass-through that allows
// everything. Used when rate limiting is switched off in config.
func WithDisabled(disabled bool) Option {
	return func(l *Limiter) {
		l.disabled = disabled
	}
}

// WithTimeout bounds each backend call. After the timeout the call is
// treated as a backend error and the check fails open (default: 2s).
func WithTimeout(d time.Duration) Option {
	return func(l *Limiter) {
		l.timeout = d
	}
}

// WithMetrics attaches Prometheus collectors to the limiter.
func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// New creates a Limiter on the given store.
func New(st store.Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:   st,
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connect creates a Limiter against Redis, probing connectivity once.
// If the probe fails the limiter runs on the in-process fixed-window
// fallback for the life of the process; the choice is not re-evaluated,
// so recovering from a mid-life Redis outage requires a restart. Use
// Fallback to surface which backend was selected. A limiter built with
// WithDisabled(true) never consults its store, so Connect skips the
// probe entirely rather than stalling startup on the dial.
func Connect(cfg store.RedisConfig, opts ...Option) *Limiter {
	l := New(nil, opts...)
	if l.disabled {
		l.store = store.NewMemory()
		return l
	}

	st, err := store.NewRedis(cfg)
	if err != nil {
		l.store = store.NewMemory()
		l.fallback = true
		l.metrics.SetFallbackActive(true)
		return l
	}
	l.store = st
	return l
}

// Fallback reports whether the limiter is running on the in-process
// fallback store instead of Redis.
func (l *Limiter) Fallback() bool {
	return l.fallback
}

// Close releases the underlying store.
func (l *Limiter) Close() error {
	return l.store.Close()
}

// Check evaluates one dimension and returns the decision. It never
// returns an error: a disabled limiter, an empty identifier, an
// unparseable or zero limit spec, and any backend fault all resolve to
// Allow. Backend faults are logged when a canonical logger is present
// in the context.
func (l *Limiter) Check(ctx context.Context, dimension Dimension, identifier, rawLimit, endpoint string) store.Decision {
	allow := store.Decision{Allowed: true}

	if l.disabled || identifier == "" {
		return allow
	}

	spec := ParseLimit(rawLimit)
	if spec.Unlimited() {
		return allow
	}

	key := BuildKey(dimension, identifier, endpoint)

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	decision, err := l.store.Check(cctx, key, spec.Count, spec.Window)
	l.metrics.ObserveCheckDuration(time.Since(start))

	if err != nil {
		if _, ok := canonlog.TryGetLogger(ctx); ok {
			canonlog.ErrorAdd(ctx, fmt.Errorf("rate limit backend unavailable, failing open: %w", err))
		}
		l.metrics.RecordBackendError()
		return allow
	}

	l.metrics.RecordCheck(dimension, decision.Allowed)
	return decision
}

// ClientIP returns the client address used for the IP dimension. It
// prefers the first entry of X-Forwarded-For, falling back to the
// peer address with any port stripped.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			xff = xff[:idx]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
