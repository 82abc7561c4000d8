// Package auth implements the API-key credential lifecycle, the
// authentication of inbound calls on both wire surfaces, and the
// permission model gating every service method.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// KeyPrefix is the stable human-readable prefix of every raw API key.
const KeyPrefix = "gm_"

// displayPrefixLen is how many characters of the raw key are kept as the
// non-secret display fragment.
const displayPrefixLen = 8

// KeyMaterial is the output of generating a new API key. Raw is shown to
// the caller exactly once; only Prefix and Hash are stored.
type KeyMaterial struct {
	Raw    string
	Prefix string
	Hash   string
}

// GenerateAPIKey produces a new API key from the given randomness source.
// The raw form is "gm_" + base64url(32 random bytes); the hash is the
// sha256 of the full raw string, hex-encoded.
func GenerateAPIKey(random io.Reader) (KeyMaterial, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(random, buf); err != nil {
		return KeyMaterial{}, fmt.Errorf("failed to generate random key: %w", err)
	}

	raw := KeyPrefix + base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(buf)
	return KeyMaterial{
		Raw:    raw,
		Prefix: raw[:displayPrefixLen],
		Hash:   HashKey(raw),
	}, nil
}

// NewKey generates a key from crypto/rand.
func NewKey() (KeyMaterial, error) {
	return GenerateAPIKey(rand.Reader)
}

// HashKey computes the storable one-way hash of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
