package ratelimit

import (
	"strconv"
	"strings"
	"time"
)

// LimitSpec is a parsed rate limit. A Count of zero means no limit is
// configured; checks against a zero spec always allow.
type LimitSpec struct {
	Count  uint64
	Window time.Duration
	Raw    string
}

// Unlimited reports whether the spec imposes no limit.
func (s LimitSpec) Unlimited() bool {
	return s.Count == 0
}

// ParseLimit parses a "N/unit" limit literal, e.g. "100/minute".
// Recognized units are second, minute, hour, and day.
//
// Parsing never fails: malformed input (missing separator, non-numeric
// count, empty string) yields a zero spec, i.e. no limit. An
// unrecognized unit falls back to an hourly window instead of erroring.
// Both behaviors are load-bearing — a config typo must never start
// rejecting traffic.
func ParseLimit(raw string) LimitSpec {
	countPart, unitPart, found := strings.Cut(raw, "/")
	if !found {
		return LimitSpec{Raw: raw}
	}

	count, err := strconv.ParseUint(strings.TrimSpace(countPart), 10, 64)
	if err != nil {
		return LimitSpec{Raw: raw}
	}

	var window time.Duration
	switch strings.TrimSpace(unitPart) {
	case "second":
		window = time.Second
	case "minute":
		window = time.Minute
	case "day":
		window = 24 * time.Hour
	default:
		window = time.Hour
	}

	return LimitSpec{Count: count, Window: window, Raw: raw}
}
