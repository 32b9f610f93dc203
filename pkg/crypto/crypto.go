// Package crypto verifies the admin key presented to the HTTP API.
package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
)

// HashToken hashes a raw token string with SHA-256.
func HashToken(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

// AdminKey checks candidate keys against the configured one. Only the
// SHA-256 digest of the key is kept and comparison is constant time.
type AdminKey struct {
	digest []byte
}

// NewAdminKey returns a verifier for key. An empty key yields a verifier
// that rejects everything.
func NewAdminKey(key string) *AdminKey {
	if key == "" {
		return &AdminKey{}
	}
	return &AdminKey{digest: HashToken(key)}
}

// Configured reports whether an admin key was set.
func (k *AdminKey) Configured() bool {
	return len(k.digest) > 0
}

// Verify reports whether candidate matches the configured key.
func (k *AdminKey) Verify(candidate string) bool {
	if !k.Configured() || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare(HashToken(candidate), k.digest) == 1
}
