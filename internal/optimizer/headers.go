package optimizer

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aellingwood/glaze/internal/imagetype"
	"golang.org/x/text/unicode/norm"
)

// writeHeaders sets the caching and security headers for a response and
// resolves the conditional-request outcome. When it returns true the 304
// has already been written and the caller must not write a body.
func writeHeaders(w http.ResponseWriter, r *http.Request, srcURL, etag string, age int, contentType string, dev bool) bool {
	h := w.Header()
	h.Set("Vary", "Accept")

	if dev {
		age = 0
	}
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, must-revalidate", age))

	// A 304 must carry the same ETag a 200 would have (RFC 7232 §4.1),
	// so set it before deciding.
	if etag != "" {
		h.Set("ETag", etag)
	}
	if fresh(r.Header, etag, time.Time{}) {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	if contentType != "" {
		h.Set("Content-Type", contentType)
	}

	if name := downloadFilename(srcURL, contentType); name != "" {
		h.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	}

	// Images must never execute as scripts, even if mis-served.
	h.Set("Content-Security-Policy", "script-src 'none'; sandbox;")

	return false
}

// downloadFilename derives a suggested filename from the source
// reference's final path segment, with the extension matching the content
// type actually served. Returns "" when no sensible name can be built.
func downloadFilename(srcURL, contentType string) string {
	ext := imagetype.Extension(contentType)
	if ext == "" {
		return ""
	}

	withoutQuery, _, _ := strings.Cut(srcURL, "?")
	segment := withoutQuery[strings.LastIndex(withoutQuery, "/")+1:]
	if segment == "" {
		return ""
	}
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}

	stem, _, _ := strings.Cut(segment, ".")
	if stem == "" {
		return ""
	}

	return norm.NFC.String(stem) + "." + ext
}
