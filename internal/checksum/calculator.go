package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Calculator computes a content fingerprint.
type Calculator interface {
	// Sum returns the fingerprint of content as lowercase hex.
	Sum(content []byte) string
}

// SHA256 implements Calculator with SHA-256. It is a zero-size value type.
type SHA256 struct{}

// New creates a new SHA-256 based calculator.
func New() SHA256 {
	return SHA256{}
}

// Sum computes SHA-256 of the exact bytes; payloads are never normalized.
func (SHA256) Sum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

var _ Calculator = SHA256{}
