// Package replay serves a recorded bundle back to a live browser context:
// it restores storage state, intercepts every outbound request and answers
// from per-key FIFO queues of archived exchanges.
package replay

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// excludedQueryParams are cache-busters and ad/analytics tracking noise
// that vary between identical logical requests and must not affect
// matching.
var excludedQueryParams = map[string]bool{
	"_":          true,
	"t":          true,
	"ts":         true,
	"timestamp":  true,
	"v":          true,
	"version":    true,
	"cache_bust": true,
	"cb":         true,
	"nocache":    true,
	"r":          true,
	"gclid":      true,
	"fbclid":     true,
	"msclkid":    true,
}

// NormalizeURL strips excluded and utm_* query parameters, sorts the
// remainder and drops the fragment, so the same logical request always
// yields the same key.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if excludedQueryParams[key] || strings.HasPrefix(key, "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode() // Encode sorts keys
	}
	return u.String()
}

// MatchKey builds the matching key: method + normalized URL, extended with
// a body hash for methods where the body distinguishes requests.
func MatchKey(method, rawURL string, body []byte) string {
	method = strings.ToUpper(method)
	key := method + " " + NormalizeURL(rawURL)
	if method == "GET" || method == "HEAD" || len(body) == 0 {
		return key
	}
	sum := sha256.Sum256(body)
	return key + " " + hex.EncodeToString(sum[:])
}
