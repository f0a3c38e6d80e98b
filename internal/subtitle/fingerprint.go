package subtitle

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint hashes the raw subtitle source bytes. It must be computed
// before any parsing or normalization so an unchanged source file always
// fingerprints identically.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
