// Package middleware applies admission control to Chi and standard
// http.Handler chains.
//
// Admission is the global middleware: it evaluates the configured
// global and endpoint limits for every request, short-circuiting on the
// first violation and rendering a structured 429. Guard is the
// per-route counterpart for declaring limits on a single handler:
//
//	r := chi.NewRouter()
//	r.Use(middleware.New(limiter, cfg).Handler)
//
//	r.With(middleware.Guard(limiter,
//	    middleware.PerIP("5/minute"),
//	    middleware.PerEmail("3/hour"),
//	)).Post("/password-reset", resetHandler)
//
// The middleware boundary fails open: a panic anywhere during
// evaluation is recovered, logged, and the request proceeds
// unthrottled. Only a genuine quota violation produces a 429.
package middleware
