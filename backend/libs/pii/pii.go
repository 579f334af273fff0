// Package pii renders personal identifiers safe for logs.
package pii

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a short, stable BLAKE2b digest of value for correlation in logs.
// Empty input yields an empty fingerprint.
func Fingerprint(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(strings.ToUpper(value)))
	return "pii:" + hex.EncodeToString(sum[:6])
}
