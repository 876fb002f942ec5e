// Package imagetype identifies image formats from raw bytes and maps
// between MIME types and file extensions. Detection is signature-based so
// it cannot be fooled by a missing or incorrect upstream Content-Type.
package imagetype

import "strings"

// MIME types recognised by the cache.
const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	WEBP = "image/webp"
	SVG  = "image/svg+xml"
	AVIF = "image/avif"
)

// signature is a magic-number prefix check. Zero bytes in the pattern are
// wildcards (used for length fields inside RIFF and ISO-BMFF headers).
type signature struct {
	pattern []byte
	mime    string
}

var signatures = []signature{
	{[]byte{0xff, 0xd8, 0xff}, JPEG},
	{[]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}, PNG},
	{[]byte("GIF8"), GIF},
	{[]byte{'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'E', 'B', 'P'}, WEBP},
	{[]byte("<?xml"), SVG},
	{[]byte{0, 0, 0, 0, 'f', 't', 'y', 'p', 'a', 'v', 'i', 'f'}, AVIF},
}

// Detect inspects the first few bytes of buf against known file signatures
// and returns the matching MIME type, or "" if the content is not a
// recognised image format.
func Detect(buf []byte) string {
	for _, sig := range signatures {
		if matches(buf, sig.pattern) {
			return sig.mime
		}
	}
	return ""
}

func matches(buf, pattern []byte) bool {
	if len(buf) < len(pattern) {
		return false
	}
	for i, b := range pattern {
		if b != 0 && buf[i] != b {
			return false
		}
	}
	return true
}

var mimeToExt = map[string]string{
	JPEG: "jpeg",
	PNG:  "png",
	GIF:  "gif",
	WEBP: "webp",
	SVG:  "svg",
	AVIF: "avif",
}

var extToMime = map[string]string{
	"jpeg": JPEG,
	"jpg":  JPEG,
	"png":  PNG,
	"gif":  GIF,
	"webp": WEBP,
	"svg":  SVG,
	"avif": AVIF,
}

// Extension returns the canonical file extension (without dot) for a MIME
// type, or "" if the type is unknown.
func Extension(mime string) string {
	return mimeToExt[mime]
}

// ByExtension returns the MIME type for a file extension (without dot), or
// "" if the extension is unknown.
func ByExtension(ext string) string {
	return extToMime[strings.ToLower(ext)]
}

// IsVector reports whether mime is a vector format that must never be
// rasterised.
func IsVector(mime string) bool {
	return mime == SVG
}

// IsAnimatable reports whether mime is a format capable of holding multiple
// frames. Whether a particular payload actually animates is decided by
// IsAnimated.
func IsAnimatable(mime string) bool {
	switch mime {
	case GIF, PNG, WEBP:
		return true
	}
	return false
}

// IsImage reports whether mime names a raster or vector image type.
func IsImage(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}
