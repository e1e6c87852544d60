package util

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"

	"github.com/google/uuid"
)

// HashPassword hashes a plaintext password to the hex digest stored in
// the users table.
func HashPassword(plain string) string {
	sum := sha1.Sum([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// CheckPassword compares a plaintext password against a stored digest
// in constant time.
func CheckPassword(plain, hashed string) bool {
	digest := HashPassword(plain)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(hashed)) == 1
}

// NewSessionID mints an opaque sid for the session cookie.
func NewSessionID() string {
	return uuid.NewString()
}
