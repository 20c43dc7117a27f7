// Package fingerprint derives the content-addressed cache key used by the
// Result Cache and Job Store.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint is a 256-bit hex-encoded digest of raw file bytes.
type Fingerprint string

// Hash derives a deterministic, collision-resistant Fingerprint from raw
// file content. It never fails: every byte slice, including the empty one,
// has a digest.
func Hash(content []byte) Fingerprint {
	sum := sha256.Sum256(content)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

func (f Fingerprint) String() string { return string(f) }
