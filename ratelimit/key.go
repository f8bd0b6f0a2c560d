package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Dimension is the axis along which a limit is enforced.
type Dimension string

const (
	DimensionIP     Dimension = "ip"
	DimensionUser   Dimension = "user"
	DimensionEmail  Dimension = "email"
	DimensionCustom Dimension = "custom"
)

const keyNamespace = "ratelimit"

// maxIdentifierLength bounds how much raw identifier ends up in a
// backend key. Longer identifiers (emails, opaque tokens) are replaced
// by a content hash. This is a size bound, not a security control.
const maxIdentifierLength = 50

// BuildKey builds the backend key for a (dimension, identifier,
// endpoint) triple: "ratelimit:<dimension>:<identifier>[:<endpoint>]".
// Identifiers longer than 50 characters are replaced with a
// fixed-length hex digest, so two distinct identifiers map to distinct
// keys with overwhelming probability and keys stay bounded.
func BuildKey(dimension Dimension, identifier, endpoint string) string {
	if len(identifier) > maxIdentifierLength {
		sum := sha256.Sum256([]byte(identifier))
		identifier = hex.EncodeToString(sum[:])
	}

	var b strings.Builder
	b.Grow(len(keyNamespace) + len(dimension) + len(identifier) + len(endpoint) + 3)
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(string(dimension))
	b.WriteByte(':')
	b.WriteString(identifier)
	if endpoint != "" {
		b.WriteByte(':')
		b.WriteString(endpoint)
	}
	return b.String()
}
