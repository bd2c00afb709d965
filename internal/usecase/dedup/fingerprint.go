// Package dedup computes article fingerprints and guards the dedup store.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// FingerprintLength is the number of hex characters kept from the digest.
const FingerprintLength = 16

// punctuation matches everything that is neither a word character nor
// whitespace, with letters and digits from any script counting as word
// characters.
var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// NormalizeTitle lowercases title, drops punctuation and collapses runs of
// whitespace.
func NormalizeTitle(title string) string {
	t := punctuation.ReplaceAllString(strings.ToLower(title), "")
	return strings.Join(strings.Fields(t), " ")
}

// NormalizeURL drops the query string and lowercases the rest.
func NormalizeURL(rawURL string) string {
	u, _, _ := strings.Cut(rawURL, "?")
	return strings.TrimSpace(strings.ToLower(u))
}

// Fingerprint identifies an article across runs. Tracking parameters and
// case or spacing changes do not change it; the same headline from two
// sources gives two fingerprints.
func Fingerprint(title, url, source string) string {
	key := NormalizeTitle(title) + "|" + NormalizeURL(url) + "|" + strings.ToLower(strings.TrimSpace(source))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}
