package clients

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashSecret returns the hex-encoded SHA-256 digest of a plaintext security
// code. Only the digest is ever stored or compared.
func HashSecret(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// VerifySecret reports whether the plaintext hashes to the stored digest.
func VerifySecret(plaintext, digest string) bool {
	computed := HashSecret(plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
