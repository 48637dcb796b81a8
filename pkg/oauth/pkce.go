package oauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/bimhub/bimhub/pkg/models"
)

// ComputeS256Challenge derives the S256 code challenge from a verifier.
func ComputeS256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE checks the code verifier against the stored challenge using
// the method registered with the authorization code. Comparison is
// constant time.
func VerifyPKCE(method models.CodeChallengeMethod, challenge, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}

	var computed string
	switch method {
	case models.CodeChallengeS256:
		computed = ComputeS256Challenge(verifier)
	case models.CodeChallengePlain:
		computed = verifier
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
