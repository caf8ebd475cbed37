package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// ContentHash fingerprints a request for deduplication. Identical
// (url, limit, locale, version) tuples always hash to the same 32 hex chars.
func ContentHash(appURL string, reviewLimit int, locale, analysisVersion string) string {
	raw := strings.Join([]string{appURL, strconv.Itoa(reviewLimit), locale, analysisVersion}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:32]
}
