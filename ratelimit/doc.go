// Package ratelimit implements the admission-control core: limit spec
// parsing, backend key building, and the Limiter facade that turns a
// (dimension, identifier, limit) triple into an allow/deny decision.
//
// The facade is deliberately permissive at every internal fault line.
// A malformed limit spec parses to "no limit", an empty identifier is
// exempt, and a backend error is absorbed and answered with Allow.
// The only way a request is rejected is a genuine quota violation.
//
// Construct one Limiter at process start and share it; it is safe for
// concurrent use:
//
//	limiter := ratelimit.Connect(store.RedisConfig{URL: "localhost:6379"})
//	defer limiter.Close()
//
//	d := limiter.Check(ctx, ratelimit.DimensionIP, ip, "100/minute", "/auth/login")
//	if !d.Allowed {
//	    // reject with 429, Retry-After from d.ResetAt
//	}
package ratelimit
