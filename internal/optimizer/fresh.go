package optimizer

import (
	"net/http"
	"regexp"
	"strings"
	"time"
)

// noCacheRE matches a no-cache token inside a request Cache-Control value.
var noCacheRE = regexp.MustCompile(`(?:^|,)\s*?no-cache\s*?(?:,|$)`)

// fresh evaluates conditional-request headers against the candidate entity
// tag and last-modified time, per RFC 7232. A true result means the
// client's cached copy is still valid and a 304 may be sent.
func fresh(reqHeader http.Header, etag string, lastModified time.Time) bool {
	modifiedSince := reqHeader.Get("If-Modified-Since")
	noneMatch := reqHeader.Get("If-None-Match")

	// Unconditional request.
	if modifiedSince == "" && noneMatch == "" {
		return false
	}

	// Always stale under Cache-Control: no-cache, so end-to-end reloads
	// reach the server.
	if cc := reqHeader.Get("Cache-Control"); cc != "" && noCacheRE.MatchString(cc) {
		return false
	}

	if noneMatch != "" && noneMatch != "*" {
		if etag == "" {
			return false
		}
		if !etagMatches(noneMatch, etag) {
			return false
		}
	}

	if noneMatch == "" && modifiedSince != "" {
		since, err := http.ParseTime(modifiedSince)
		if err != nil {
			return false
		}
		if lastModified.IsZero() || lastModified.After(since) {
			return false
		}
	}

	return true
}

// etagMatches reports whether any token in an If-None-Match list matches
// etag, treating weak-prefixed forms as equivalent in both directions.
func etagMatches(noneMatch, etag string) bool {
	for _, match := range strings.Split(noneMatch, ",") {
		match = strings.TrimSpace(match)
		if match == etag || match == "W/"+etag || "W/"+match == etag {
			return true
		}
	}
	return false
}
