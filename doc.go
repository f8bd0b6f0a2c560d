// Package gatekit provides admission control (rate limiting) building
// blocks for Chi routers and standard http.Handler chains.
//
// The kit decides, per inbound request, whether to admit or reject work
// based on per-dimension quotas: client IP, authenticated principal, and
// an email address extracted from the request payload. It is organized
// as a root package holding the shared error vocabulary and
// configuration surface, with the core in subpackages:
//
//   - ratelimit: limit-spec parsing, key building, the Limiter facade
//   - ratelimit/store: Redis sliding-window log and in-process fallback
//   - middleware: admission middleware and per-route Guard
//
// Typical wiring:
//
//	cfg, err := gatekit.LoadConfig("ratelimit.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	limiter := ratelimit.Connect(cfg.Redis, ratelimit.WithDisabled(!cfg.Enabled))
//	defer limiter.Close()
//
//	r := chi.NewRouter()
//	r.Use(middleware.New(limiter, cfg).Handler)
//
// All internal faults fail open: a malformed limit spec means "no
// limit", and an unreachable backend admits traffic rather than
// blocking it. The only error type that crosses the subsystem boundary
// is ratelimit.LimitExceededError, rendered to clients as a structured
// 429 Problem document.
package gatekit
