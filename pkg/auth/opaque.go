package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// PATPrefix marks raw personal access tokens so transports can route
// them without a database lookup.
const PATPrefix = "pat_"

// patVisiblePrefixLen is how many characters of the random portion are
// kept in clear for token listings.
const patVisiblePrefixLen = 8

// GenerateOpaqueToken returns a 256-bit random token encoded as
// unpadded base64url, suitable for refresh tokens and authorization
// codes.
func GenerateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GeneratePAT returns a raw personal access token, its stored hash, and
// the visible prefix recorded for listings. The raw token is shown to
// the user exactly once.
func GeneratePAT() (raw, hash, visiblePrefix string, err error) {
	random, err := GenerateOpaqueToken()
	if err != nil {
		return "", "", "", err
	}
	raw = PATPrefix + random
	return raw, HashToken(raw), PATPrefix + random[:patVisiblePrefixLen], nil
}

// IsPAT reports whether the raw credential carries the PAT prefix.
func IsPAT(raw string) bool {
	return strings.HasPrefix(raw, PATPrefix)
}

// HashToken returns the hex-encoded SHA-256 of the raw token. Only this
// hash is persisted.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// VerifyTokenHash recomputes the hash of raw and compares it to the
// stored hash in constant time.
func VerifyTokenHash(raw, storedHash string) bool {
	computed := HashToken(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
