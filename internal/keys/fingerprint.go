package keys

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a hex-encoded SHA-256 digest of the event content.
// Hashing bounds key length and keeps raw user content out of storage keys.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
