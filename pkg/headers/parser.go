// Package headers extracts rate limit hints from provider responses.
package headers

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryAfter returns the wait requested by a Retry-After header given in
// seconds. Absent, malformed or negative values yield fallback.
func RetryAfter(headers http.Header, fallback time.Duration) time.Duration {
	n, ok := parseIntHeader(headers, "Retry-After")
	if !ok || n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// RateLimit is the quota snapshot some providers attach to every response.
type RateLimit struct {
	Limit     int64
	Remaining int64
	Reset     time.Duration
}

// rateLimitPrefixes are tried in order; the first with a Remaining header wins.
var rateLimitPrefixes = []string{"Fitbit-Rate-Limit-", "X-RateLimit-", "RateLimit-"}

// ParseRateLimit reads limit/remaining/reset headers. ok is false when the
// response carries none.
func ParseRateLimit(headers http.Header) (RateLimit, bool) {
	for _, prefix := range rateLimitPrefixes {
		remaining, ok := parseIntHeader(headers, prefix+"Remaining")
		if !ok {
			continue
		}
		limit, _ := parseIntHeader(headers, prefix+"Limit")
		reset, _ := parseIntHeader(headers, prefix+"Reset")
		return RateLimit{
			Limit:     limit,
			Remaining: remaining,
			Reset:     time.Duration(reset) * time.Second,
		}, true
	}
	return RateLimit{}, false
}

// Helper functions

func parseIntHeader(headers http.Header, key string) (int64, bool) {
	val := strings.TrimSpace(headers.Get(key))
	if val == "" {
		return 0, false
	}

	// Handle duration format like "0s", "60s"
	if strings.HasSuffix(val, "s") {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, false
		}
		return int64(d.Seconds()), true
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
