package codec

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"

	"github.com/aellingwood/glaze/internal/imagetype"

	// Decode-only support for GIF and WebP sources.
	_ "image/gif"

	_ "golang.org/x/image/webp"
)

// Fallback is the stdlib-only engine. It cannot encode WebP or AVIF, so
// those targets are downgraded to JPEG; the pipeline's response headers
// follow the bytes that were actually produced.
type Fallback struct{}

// Name identifies the engine in logs.
func (f *Fallback) Name() string { return "fallback" }

// Transform decodes src, normalises orientation, resizes to o.Width when
// the source is wider, and encodes to the nearest format the standard
// library supports.
func (f *Fallback) Transform(src []byte, o Options) ([]byte, error) {
	img, err := decodeNormalized(src)
	if err != nil {
		return nil, err
	}
	img = fitWidth(img, o.Width)

	format := o.Format
	switch format {
	case imagetype.WEBP, imagetype.AVIF:
		format = imagetype.JPEG
	}

	var buf bytes.Buffer
	switch format {
	case imagetype.PNG:
		err = png.Encode(&buf, img)
	case imagetype.JPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: o.Quality})
	default:
		return nil, unsupportedFormat(o.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
