// Package idhash derives identifiers for sessions and uploaded datasets.
package idhash

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// NewSessionID returns a random base58 identifier (128 bits).
func NewSessionID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base58.Encode(b[:]), nil
}

// ComputeDatasetID computes a deterministic dataset_id using SHA256.
// Formula: SHA256(kind|sheet|content)
// Returns the base58-encoded hash.
func ComputeDatasetID(kind, sheet string, content []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|", kind, sheet)
	h.Write(content)
	return base58.Encode(h.Sum(nil))
}

// IsValid reports whether id decodes as base58 to at least 16 bytes.
func IsValid(id string) bool {
	b, err := base58.Decode(id)
	return err == nil && len(b) >= 16
}
