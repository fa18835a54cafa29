// Package fingerprint derives stable identifiers from request payloads so
// duplicate submissions can be detected regardless of field order.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Length is the number of hex characters kept from the SHA-256 digest.
// Truncation keeps store keys short; 128 bits is ample for collision safety
// within the 60 second deduplication window.
const Length = 32

// New computes the fingerprint of data, optionally scoped to a user so the
// same payload submitted by different users never collides. Key order in
// data does not affect the result.
func New(data map[string]any, userID string) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s:%v", key, data[key]))
	}

	payload := strings.Join(pairs, "|")
	if userID != "" {
		payload = fmt.Sprintf("user:%s|%s", userID, payload)
	}

	digest := sha256.Sum256([]byte(payload))

	return hex.EncodeToString(digest[:])[:Length]
}

// Prefix returns a short prefix of a fingerprint safe to put in logs.
// Full fingerprints stay out of logs so payload hashes cannot be correlated.
func Prefix(fp string) string {
	if len(fp) <= 8 {
		return fp
	}

	return fp[:8]
}
