package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"math/big"
)

const (
	opaqueTokenBytes = 32
	codeDigits       = 6
)

// NewOpaqueToken returns a URL-safe random token with 256 bits of entropy.
// Used for refresh tokens, password-reset tokens, and email verification tokens.
func NewOpaqueToken() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewNumericCode returns a 6-digit numeric code (e.g. "048213") for phone verification.
func NewNumericCode() (string, error) {
	max := big.NewInt(10)
	s := make([]byte, codeDigits)
	for i := range s {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		s[i] = '0' + byte(n.Int64())
	}
	return string(s), nil
}

// HashToken returns the hex-encoded SHA-256 of token. Secrets are persisted only in this form.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenHashEqual reports whether provided hashes to storedHash, in constant time.
// An empty storedHash never matches.
func TokenHashEqual(provided, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(provided)), []byte(storedHash)) == 1
}
