// Package fingerprint computes content-integrity digests for agreement text.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// HexLen is the length of a digest returned by Hex.
const HexLen = sha256.Size * 2

// Hex returns the SHA-256 digest of content as a lowercase hex string.
// It is deterministic: identical input always yields an identical digest.
func Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether content hashes to the stored digest. Used by the
// sign viewer to detect post-publication tampering before enabling the sign
// action.
func Matches(content, storedHash string) bool {
	return Hex(content) == storedHash
}
