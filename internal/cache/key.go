// Package cache persists transformed images on disk, one directory per
// fingerprint, with per-entry metadata encoded in the stored filename so no
// separate index is needed.
package cache

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
)

// Version is bumped whenever the cache entry format changes; it is part of
// every fingerprint so entries from older layouts are simply never found.
const Version = 3

// Fingerprint derives the cache key for one transformation. Identical
// inputs always produce identical keys; the digest is rendered in a
// filesystem-safe base64 variant ("/" would create subdirectories).
func Fingerprint(version int, href string, width, quality int, mime string) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(version)))
	h.Write([]byte(href))
	h.Write([]byte(strconv.Itoa(width)))
	h.Write([]byte(strconv.Itoa(quality)))
	h.Write([]byte(mime))
	return encodeDigest(h.Sum(nil))
}

// ETag derives a content hash over payload, in the same rendering as
// Fingerprint so both are safe inside cache filenames.
func ETag(payload []byte) string {
	sum := sha256.Sum256(payload)
	return encodeDigest(sum[:])
}

func encodeDigest(sum []byte) string {
	return strings.ReplaceAll(base64.StdEncoding.EncodeToString(sum), "/", "-")
}
