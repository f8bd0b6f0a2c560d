package ratelimit

import (
	"strings"
	"testing"
)

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name       string
		dimension  Dimension
		identifier string
		endpoint   string
		want       string
	}{
		{"ip without endpoint", DimensionIP, "192.168.1.1", "", "ratelimit:ip:192.168.1.1"},
		{"ip with endpoint", DimensionIP, "192.168.1.1", "/auth/login", "ratelimit:ip:192.168.1.1:/auth/login"},
		{"user", DimensionUser, "42", "", "ratelimit:user:42"},
		{"email", DimensionEmail, "short@example.com", "/signup", "ratelimit:email:short@example.com:/signup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildKey(tt.dimension, tt.identifier, tt.endpoint); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBuildKey_LongIdentifiersHashed(t *testing.T) {
	long := strings.Repeat("a", 51) + "@example.com"

	key := BuildKey(DimensionEmail, long, "")
	if strings.Contains(key, long) {
		t.Error("long identifier should not appear raw in the key")
	}

	// sha256 hex digest is 64 chars: "ratelimit:email:" + digest.
	if len(key) != len("ratelimit:email:")+64 {
		t.Errorf("unexpected key length %d: %q", len(key), key)
	}

	// Same input, same key.
	if again := BuildKey(DimensionEmail, long, ""); again != key {
		t.Error("hashing must be deterministic")
	}
}

func TestBuildKey_DistinctLongIdentifiers(t *testing.T) {
	a := strings.Repeat("a", 100)
	b := strings.Repeat("a", 99) + "b"

	keyA := BuildKey(DimensionCustom, a, "")
	keyB := BuildKey(DimensionCustom, b, "")

	if keyA == keyB {
		t.Error("distinct identifiers must map to distinct keys")
	}
	if len(keyA) != len(keyB) {
		t.Error("hashed keys must be fixed-length")
	}
}

func TestBuildKey_BoundaryLength(t *testing.T) {
	// Exactly 50 chars stays raw; 51 gets hashed.
	at50 := strings.Repeat("x", 50)
	if key := BuildKey(DimensionCustom, at50, ""); !strings.Contains(key, at50) {
		t.Error("50-char identifier should stay raw")
	}

	at51 := strings.Repeat("x", 51)
	if key := BuildKey(DimensionCustom, at51, ""); strings.Contains(key, at51) {
		t.Error("51-char identifier should be hashed")
	}
}
