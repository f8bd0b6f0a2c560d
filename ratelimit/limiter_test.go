package ratelimit_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatekit/gatekit/ratelimit"
	"github.com/gatekit/gatekit/ratelimit/store"
)

// failingStore simulates an unreachable backend.
type failingStore struct{}

func (failingStore) Check(context.Context, string, uint64, time.Duration) (store.Decision, error) {
	return store.Decision{}, errors.New("dial tcp: connection refused")
}

func (failingStore) Close() error { return nil }

func TestCheck_DeniesAfterLimit(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()

	limiter := ratelimit.New(st)
	ctx := context.Background()
	before := time.Now().Unix()

	// Scenario: "3/minute" admits three rapid calls, denies the fourth.
	for i := 0; i < 3; i++ {
		d := limiter.Check(ctx, ratelimit.DimensionIP, "10.0.0.1", "3/minute", "")
		if !d.Allowed {
			t.Fatalf("request %d: expected allow", i+1)
		}
		if d.ResetAt != 0 {
			t.Errorf("request %d: expected zero ResetAt when allowed, got %d", i+1, d.ResetAt)
		}
	}

	d := limiter.Check(ctx, ratelimit.DimensionIP, "10.0.0.1", "3/minute", "")
	if d.Allowed {
		t.Fatal("4th request within the window: expected deny")
	}
	if d.ResetAt <= before {
		t.Errorf("ResetAt must be in the future: got %d, checked at %d", d.ResetAt, before)
	}
	if latest := time.Now().Add(61 * time.Second).Unix(); d.ResetAt > latest {
		t.Errorf("ResetAt %d further out than one window (max %d)", d.ResetAt, latest)
	}
}

func TestCheck_IndependentIdentifiers(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()

	limiter := ratelimit.New(st)
	ctx := context.Background()

	// Two IPs under the same policy are tracked independently.
	for i := 0; i < 10; i++ {
		if d := limiter.Check(ctx, ratelimit.DimensionIP, "10.0.0.1", "10/hour", ""); !d.Allowed {
			t.Fatalf("first ip, request %d: expected allow", i+1)
		}
	}
	if d := limiter.Check(ctx, ratelimit.DimensionIP, "10.0.0.1", "10/hour", ""); d.Allowed {
		t.Fatal("first ip: expected deny after quota exhausted")
	}

	if d := limiter.Check(ctx, ratelimit.DimensionIP, "10.0.0.2", "10/hour", ""); !d.Allowed {
		t.Fatal("second ip: quota must be untouched")
	}
}

func TestCheck_EndpointScopedKeys(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()

	limiter := ratelimit.New(st)
	ctx := context.Background()

	if d := limiter.Check(ctx, ratelimit.DimensionIP, "10.0.0.1", "1/minute", "/a"); !d.Allowed {
		t.Fatal("endpoint /a: expected allow")
	}
	if d := limiter.Check(ctx, ratelimit.DimensionIP, "10.0.0.1", "1/minute", "/a"); d.Allowed {
		t.Fatal("endpoint /a: expected deny")
	}
	// Same identifier, different endpoint: separate window.
	if d := limiter.Check(ctx, ratelimit.DimensionIP, "10.0.0.1", "1/minute", "/b"); !d.Allowed {
		t.Fatal("endpoint /b: expected allow")
	}
}

func TestCheck_FailsOpenOnBackendError(t *testing.T) {
	limiter := ratelimit.New(failingStore{})

	for i := 0; i < 5; i++ {
		d := limiter.Check(context.Background(), ratelimit.DimensionIP, "10.0.0.1", "1/minute", "")
		if !d.Allowed {
			t.Fatalf("request %d: backend errors must fail open", i+1)
		}
		if d.ResetAt != 0 {
			t.Errorf("request %d: fail-open decision must carry zero ResetAt", i+1)
		}
	}
}

func TestCheck_Disabled(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()

	limiter := ratelimit.New(st, ratelimit.WithDisabled(true))

	for i := 0; i < 10; i++ {
		if d := limiter.Check(context.Background(), ratelimit.DimensionIP, "10.0.0.1", "1/minute", ""); !d.Allowed {
			t.Fatalf("request %d: disabled limiter must allow everything", i+1)
		}
	}
}

func TestCheck_EmptyIdentifierExempt(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()

	limiter := ratelimit.New(st)

	// Anonymous callers have no user identifier and are exempt from
	// the user dimension.
	for i := 0; i < 10; i++ {
		if d := limiter.Check(context.Background(), ratelimit.DimensionUser, "", "1/minute", ""); !d.Allowed {
			t.Fatalf("request %d: empty identifier must be exempt", i+1)
		}
	}
}

func TestCheck_UnlimitedSpecs(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()

	limiter := ratelimit.New(st)

	for _, raw := range []string{"", "garbage", "0/minute"} {
		for i := 0; i < 5; i++ {
			if d := limiter.Check(context.Background(), ratelimit.DimensionIP, "10.0.0.1", raw, ""); !d.Allowed {
				t.Fatalf("spec %q: expected allow", raw)
			}
		}
	}
}

func TestConnect_FallsBackWhenRedisUnreachable(t *testing.T) {
	// Nothing listens on this port; the probe must fail and select the
	// in-process store without returning an error.
	limiter := ratelimit.Connect(store.RedisConfig{URL: "localhost:1"})
	defer limiter.Close()

	if !limiter.Fallback() {
		t.Fatal("expected fallback store after failed probe")
	}

	// The fallback still enforces limits.
	ctx := context.Background()
	if d := limiter.Check(ctx, ratelimit.DimensionIP, "10.0.0.1", "1/minute", ""); !d.Allowed {
		t.Fatal("expected allow")
	}
	if d := limiter.Check(ctx, ratelimit.DimensionIP, "10.0.0.1", "1/minute", ""); d.Allowed {
		t.Fatal("expected deny")
	}
}

func TestConnect_DisabledSkipsProbe(t *testing.T) {
	// A disabled limiter never consults its store, so Connect must not
	// dial Redis at all. Nothing listens on this port: if the probe ran
	// it would fail and select the fallback, so a false Fallback()
	// proves the dial was skipped.
	limiter := ratelimit.Connect(store.RedisConfig{URL: "localhost:1"}, ratelimit.WithDisabled(true))
	defer limiter.Close()

	if limiter.Fallback() {
		t.Fatal("disabled limiter must not probe the backend")
	}

	for i := 0; i < 5; i++ {
		if d := limiter.Check(context.Background(), ratelimit.DimensionIP, "10.0.0.1", "1/minute", ""); !d.Allowed {
			t.Fatalf("request %d: disabled limiter must allow everything", i+1)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"peer address", "192.168.1.1:1234", "", "192.168.1.1"},
		{"peer address without port", "192.168.1.1", "", "192.168.1.1"},
		{"forwarded single", "10.0.0.1:1234", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain uses first", "10.0.0.1:1234", "203.0.113.7, 70.41.3.18, 150.172.238.178", "203.0.113.7"},
		{"forwarded with spaces", "10.0.0.1:1234", "  203.0.113.7 , 70.41.3.18", "203.0.113.7"},
		{"empty forwarded falls back", "192.168.1.1:1234", "", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := ratelimit.ClientIP(r); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
