package optimizer

import (
	"strconv"
	"strings"
)

// maxAge extracts the effective max-age in seconds from an upstream
// Cache-Control header. s-maxage wins over max-age; quotes around the
// value are tolerated; anything malformed or absent yields 0.
func maxAge(cacheControl string) int {
	directives := parseCacheControl(cacheControl)

	// A valueless s-maxage falls back to max-age, so the fallback keys
	// off the value, not the directive's presence.
	age := directives["s-maxage"]
	if age == "" {
		age = directives["max-age"]
	}

	if strings.HasPrefix(age, `"`) && strings.HasSuffix(age, `"`) && len(age) >= 2 {
		age = age[1 : len(age)-1]
	}

	n, err := strconv.Atoi(age)
	if err != nil {
		return 0
	}
	return n
}

// parseCacheControl splits a Cache-Control value into lowercased
// directive/value pairs. Valueless directives map to "".
func parseCacheControl(header string) map[string]string {
	directives := make(map[string]string)
	for _, directive := range strings.Split(header, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(directive), "=")
		if key == "" {
			continue
		}
		directives[strings.ToLower(key)] = strings.ToLower(value)
	}
	return directives
}
