package session

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewNonce differentiates token pairs minted for the same subject.
func NewNonce() string {
	return uuid.NewString()
}

// Sha256Hex is the stored form of a refresh token: the raw string never
// touches the database.
func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
