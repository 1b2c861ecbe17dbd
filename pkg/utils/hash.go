package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ContentSHA256 computes the SHA-256 hex digest of a document body.
func ContentSHA256(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// ContentFingerprint returns a short, fast xxhash fingerprint of content.
// Used for manifest entries and log fields where a cryptographic digest is not needed.
func ContentFingerprint(content string) string {
	return strconv.FormatUint(xxhash.Sum64String(content), 16)
}
