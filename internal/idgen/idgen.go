// Package idgen provides identifier and secret token generation.
package idgen

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// New returns a random (v4) UUID string. Row identifiers use this form so
// they fit Postgres UUID columns.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s parses as a UUID. Handlers use it to turn garbage
// path parameters into not-found before they reach the database.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Token returns prefix + 64 hex chars (32 random bytes). Used for bearer
// tokens and invitation tokens; callers store only a hash of the result.
func Token(prefix string) string {
	return prefix + Hex(32)
}

// Hex generates a random hex string of the given byte length.
func Hex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
