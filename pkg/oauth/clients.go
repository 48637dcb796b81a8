package oauth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/bimhub/bimhub/pkg/auth"
)

// clientIDPrefix marks generated client identifiers.
const clientIDPrefix = "bh_"

// NewClientID generates a random public client identifier.
func NewClientID() (string, error) {
	random, err := auth.GenerateOpaqueToken()
	if err != nil {
		return "", err
	}
	return clientIDPrefix + random[:24], nil
}

// NewClientSecret generates a raw client secret and its bcrypt hash.
// The raw secret is shown to the registrant exactly once.
func NewClientSecret() (raw, hash string, err error) {
	raw, err = auth.GenerateOpaqueToken()
	if err != nil {
		return "", "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash client secret: %w", err)
	}
	return raw, string(hashed), nil
}

// VerifyClientSecret compares a presented secret against the stored
// bcrypt hash.
func VerifyClientSecret(storedHash, presented string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(presented)) == nil
}
