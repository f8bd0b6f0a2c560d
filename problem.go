package gatekit

import (
	"encoding/json"
	"net/http"
)

// Problem represents a structured API error response. Denials and other
// failures are rendered as a problem document so clients can tell them
// apart by Type and Code rather than by parsing free-form text.
type Problem struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Status  int    `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Code    string `json:"code,omitempty"`
	I18nKey string `json:"i18n_key,omitempty"`
}

// Error implements the error interface.
func (p *Problem) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// Is implements errors.Is for comparing problem types.
func (p *Problem) Is(target error) bool {
	if p == nil {
		return target == nil
	}
	t, ok := target.(*Problem)
	if !ok {
		return false
	}
	return p.Type == t.Type && p.Code == t.Code
}

// With returns a copy of the problem with a custom detail message.
func (p *Problem) With(detail string) *Problem {
	if p == nil {
		return nil
	}
	dup := *p
	dup.Detail = detail
	return &dup
}

// Render writes the problem as a JSON response with its status code.
// Headers already set on the writer are preserved.
func (p *Problem) Render(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// Predefined sentinel problems
var (
	ProblemBadRequest   = &Problem{Type: "request_error", Title: "Bad Request", Status: http.StatusBadRequest, Code: "bad_request", I18nKey: "errors.bad_request"}
	ProblemUnauthorized = &Problem{Type: "auth_error", Title: "Unauthorized", Status: http.StatusUnauthorized, Code: "unauthorized", I18nKey: "errors.unauthorized"}
	ProblemForbidden    = &Problem{Type: "auth_error", Title: "Forbidden", Status: http.StatusForbidden, Code: "forbidden", I18nKey: "errors.forbidden"}
	ProblemNotFound     = &Problem{Type: "not_found", Title: "Not Found", Status: http.StatusNotFound, Code: "resource_not_found", I18nKey: "errors.not_found"}
	ProblemRateLimited  = &Problem{Type: "rate_limit_error", Title: "Too Many Requests", Status: http.StatusTooManyRequests, Detail: "Rate limit exceeded. Try again later.", Code: "rate_limit_exceeded", I18nKey: "errors.rate_limit_exceeded"}
	ProblemInternal     = &Problem{Type: "internal_error", Title: "Internal Server Error", Status: http.StatusInternalServerError, Code: "internal", I18nKey: "errors.internal"}
)
