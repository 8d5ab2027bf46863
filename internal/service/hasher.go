package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// ContentHasher produces the digest used for duplicate-content detection.
type ContentHasher interface {
	Sum(r io.Reader) (string, error)
}

// SHA256Hasher hashes file content with SHA-256 and renders the digest as
// lowercase hex. Two uploads with equal digests are treated as the same
// content regardless of filename.
type SHA256Hasher struct{}

// NewSHA256Hasher constructs the hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// Sum consumes the reader and returns the hex digest.
func (h *SHA256Hasher) Sum(r io.Reader) (string, error) {
	digest := sha256.New()
	if _, err := io.Copy(digest, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
