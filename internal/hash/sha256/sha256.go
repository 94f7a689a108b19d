// Package sha256 computes hex SHA-256 digests of output artifacts.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Hasher implements storage.Digester using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Digest streams r through SHA-256 and returns the hex digest and the number
// of bytes read.
func (h *Hasher) Digest(r io.Reader) (string, int64, error) {
	sum := sha256.New()
	n, err := io.Copy(sum, r)
	if err != nil {
		return "", n, fmt.Errorf("read for digest: %w", err)
	}
	return hex.EncodeToString(sum.Sum(nil)), n, nil
}
