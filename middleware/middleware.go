package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nhalm/canonlog"

	"github.com/gatekit/gatekit"
	"github.com/gatekit/gatekit/ratelimit"
)

// unknownEndpoint is the logical endpoint name used when the route
// cannot be resolved.
const unknownEndpoint = "unknown"

// Admission evaluates the configured global and endpoint limits for
// every request before the protected handler runs.
//
// Dimensions are checked in order, short-circuiting on the first
// violation: global per-IP, global per-user, endpoint per-IP, endpoint
// per-user, endpoint per-email. The email dimension only applies to
// endpoints that configure it and only when the extractor actually
// finds an address.
type Admission struct {
	limiter   *ratelimit.Limiter
	defaults  gatekit.Limits
	endpoints map[string]gatekit.Limits
	excluded  []string
	email     EmailExtractor
	logging   bool
	logFields func(*http.Request) map[string]any
}

// AdmissionOption configures the Admission middleware.
type AdmissionOption func(*Admission)

// WithEmailExtractor replaces the default body email extractor.
func WithEmailExtractor(fn EmailExtractor) AdmissionOption {
	return func(a *Admission) {
		a.email = fn
	}
}

// WithCanonlog enables canonical logging for admitted and denied
// requests. Creates a logger at request start and flushes it after the
// response, logging method, path, and duration_ms plus any denial
// fields.
func WithCanonlog() AdmissionOption {
	return func(a *Admission) {
		a.logging = true
	}
}

// WithCanonlogFields adds custom fields to each log entry. The
// function is called at request start, before evaluation.
func WithCanonlogFields(fn func(*http.Request) map[string]any) AdmissionOption {
	return func(a *Admission) {
		a.logFields = fn
	}
}

// New creates the admission middleware from a limiter and config.
// Endpoint limits are keyed by chi route pattern.
func New(limiter *ratelimit.Limiter, cfg gatekit.Config, opts ...AdmissionOption) *Admission {
	a := &Admission{
		limiter:   limiter,
		defaults:  cfg.DefaultLimits,
		endpoints: cfg.EndpointLimits,
		excluded:  cfg.ExcludedPaths,
		email:     BodyEmail,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the admission middleware.
func (a *Admission) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.excludedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if a.logging {
			ctx := canonlog.NewContext(r.Context())
			start := time.Now()

			canonlog.InfoAddMany(ctx, map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			if a.logFields != nil {
				canonlog.InfoAddMany(ctx, a.logFields(r))
			}

			defer func() {
				canonlog.InfoAddMany(ctx, map[string]any{
					"duration_ms": time.Since(start).Milliseconds(),
				})
				canonlog.Flush(ctx)
			}()

			r = r.WithContext(ctx)
		}

		endpoint := endpointName(r)
		limits := a.endpoints[endpoint]

		if denied := a.evaluate(r, endpoint, limits); denied != nil {
			if _, ok := canonlog.TryGetLogger(r.Context()); ok {
				canonlog.InfoAddMany(r.Context(), map[string]any{
					"ratelimit_limit":    denied.Limit,
					"ratelimit_reset_at": denied.ResetAt,
				})
			}
			WriteDenied(w, denied)
			return
		}

		if policy := policyHeader(limits); policy != "" {
			w.Header().Set("X-RateLimit-Policy", policy)
		}

		next.ServeHTTP(w, r)
	})
}

// evaluate runs the ordered dimension checks. A panic anywhere in
// evaluation (a misbehaving extractor, an unexpected nil) is recovered
// and the request proceeds unthrottled.
func (a *Admission) evaluate(r *http.Request, endpoint string, limits gatekit.Limits) (denied *ratelimit.LimitExceededError) {
	defer func() {
		if rec := recover(); rec != nil {
			if _, ok := canonlog.TryGetLogger(r.Context()); ok {
				canonlog.ErrorAdd(r.Context(), fmt.Errorf("admission evaluation panicked, failing open: %v", rec))
			}
			denied = nil
		}
	}()

	ctx := r.Context()
	ip := ratelimit.ClientIP(r)
	user, _ := UserIDFromContext(ctx)

	type check struct {
		dimension  ratelimit.Dimension
		identifier string
		spec       string
		endpoint   string
	}

	checks := []check{
		{ratelimit.DimensionIP, ip, a.defaults.PerIP, ""},
		{ratelimit.DimensionUser, user, a.defaults.PerUser, ""},
		{ratelimit.DimensionIP, ip, limits.PerIP, endpoint},
		{ratelimit.DimensionUser, user, limits.PerUser, endpoint},
	}
	if limits.PerEmail != "" {
		if email, ok := a.email(r); ok {
			checks = append(checks, check{ratelimit.DimensionEmail, email, limits.PerEmail, endpoint})
		}
	}

	for _, c := range checks {
		if d := a.limiter.Check(ctx, c.dimension, c.identifier, c.spec, c.endpoint); !d.Allowed {
			return &ratelimit.LimitExceededError{Limit: c.spec, ResetAt: d.ResetAt}
		}
	}
	return nil
}

func (a *Admission) excludedPath(path string) bool {
	for _, prefix := range a.excluded {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// WriteDenied renders the structured 429 response for a violated
// limit: Retry-After (seconds, minimum 1), X-RateLimit-Limit (the
// violated spec string), and X-RateLimit-Reset (epoch seconds) when
// known, with the rate-limit problem document as the body.
func WriteDenied(w http.ResponseWriter, denied *ratelimit.LimitExceededError) {
	w.Header().Set("Retry-After", strconv.Itoa(denied.RetryAfter()))
	if denied.Limit != "" {
		w.Header().Set("X-RateLimit-Limit", denied.Limit)
	}
	if denied.ResetAt > 0 {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(denied.ResetAt, 10))
	}
	gatekit.ProblemRateLimited.Render(w)
}

// endpointName resolves the logical endpoint for the request: the chi
// route pattern when available. Admission middleware runs before
// routing, so the pattern is resolved by matching against the mux;
// unresolvable requests fall back to "unknown".
func endpointName(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unknownEndpoint
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	if rctx.Routes != nil {
		tctx := chi.NewRouteContext()
		if rctx.Routes.Match(tctx, r.Method, r.URL.Path) {
			return tctx.RoutePattern()
		}
	}
	return unknownEndpoint
}

// policyHeader summarizes the endpoint's configured limits for the
// informational X-RateLimit-Policy header. No backend round trip is
// made to report live remaining counts.
func policyHeader(limits gatekit.Limits) string {
	parts := make([]string, 0, 3)
	if limits.PerIP != "" {
		parts = append(parts, "ip="+limits.PerIP)
	}
	if limits.PerUser != "" {
		parts = append(parts, "user="+limits.PerUser)
	}
	if limits.PerEmail != "" {
		parts = append(parts, "email="+limits.PerEmail)
	}
	return strings.Join(parts, ", ")
}
