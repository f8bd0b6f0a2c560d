package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// EmailExtractor pulls an email address out of a request for the email
// dimension. Returning ok=false skips the dimension; extraction is
// best-effort and must never fail a request. Routes with unusual wire
// formats supply their own extractor so the core never needs to know
// how the body is encoded.
type EmailExtractor func(*http.Request) (string, bool)

// maxEmailProbeBytes bounds how much body is read looking for an email.
const maxEmailProbeBytes = 1 << 20

// BodyEmail is the default extractor. It reads an "email" field from a
// JSON object or urlencoded form body, restoring the body for the
// downstream handler. Only the first MiB is inspected; anything beyond
// that is left on the original stream and handed through unread, so
// oversized bodies skip the dimension but reach the handler intact.
// A missing field, an unparsable body, or an unrecognized content type
// all skip the dimension.
func BodyEmail(r *http.Request) (string, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", false
	}

	orig := r.Body
	buf, err := io.ReadAll(io.LimitReader(orig, maxEmailProbeBytes))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), orig), orig}
	if err != nil || len(buf) == 0 {
		return "", false
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var payload struct {
			Email string `json:"email"`
		}
		if json.Unmarshal(buf, &payload) == nil && payload.Email != "" {
			return payload.Email, true
		}
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		if vals, err := url.ParseQuery(string(buf)); err == nil {
			if email := vals.Get("email"); email != "" {
				return email, true
			}
		}
	}

	return "", false
}
