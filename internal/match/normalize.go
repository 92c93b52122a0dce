package match

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var protocolStripper = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://`)

// SiteProfile captures the normalization output for a site URL.
type SiteProfile struct {
	Original string
	// Host is the bare host name without scheme, credentials, port or a leading "www.".
	Host string
	// Key identifies the site in the document cache.
	Key string
}

// NormalizeSite extracts the first-party host and cache key from a site URL.
func NormalizeSite(input string) SiteProfile {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)
	lower = protocolStripper.ReplaceAllString(lower, "")

	// Trim path, query, fragment
	for _, sep := range []string{"/", "?", "#"} {
		if idx := strings.Index(lower, sep); idx >= 0 {
			lower = lower[:idx]
		}
	}

	// Drop credentials if present (user:pass@)
	if idx := strings.LastIndex(lower, "@"); idx >= 0 {
		lower = lower[idx+1:]
	}

	host := lower
	if idx := strings.IndexRune(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	host = strings.Trim(host, ".")
	host = strings.TrimPrefix(host, "www.")

	return SiteProfile{
		Original: input,
		Host:     host,
		Key:      trimmed,
	}
}

// Hash returns the hex SHA-256 digest of the trimmed URL.
func Hash(url string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:])
}
