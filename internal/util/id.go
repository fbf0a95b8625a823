package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a short URL-safe hex id, used for request ids, revision rows
// and object keys.
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
