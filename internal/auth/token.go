package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// NewToken mints a bearer token for API access. The plaintext is handed to
// the client once; only the digest is stored server side.
func NewToken() (plaintext, digest string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("auth: generate token: %w", err)
	}
	plaintext = hex.EncodeToString(raw)
	return plaintext, Digest(plaintext), nil
}

// Digest returns the hex-encoded SHA-256 digest of a plaintext token, the
// form tokens are stored and looked up in.
func Digest(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
