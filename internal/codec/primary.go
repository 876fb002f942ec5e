package codec

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"

	"github.com/aellingwood/glaze/internal/imagetype"
	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"
)

// Primary is the full-capability engine: JPEG and PNG via the standard
// encoders, WebP and AVIF via wasm codecs. Importing the codec packages
// also registers their decoders, so WebP and AVIF sources decode too.
type Primary struct{}

// Name identifies the engine in logs.
func (p *Primary) Name() string { return "primary" }

// Transform decodes src, normalises orientation, resizes to o.Width when
// the source is wider, and encodes to o.Format at o.Quality.
func (p *Primary) Transform(src []byte, o Options) ([]byte, error) {
	img, err := decodeNormalized(src)
	if err != nil {
		return nil, err
	}
	img = fitWidth(img, o.Width)

	var buf bytes.Buffer
	switch o.Format {
	case imagetype.WEBP:
		err = webp.Encode(&buf, img, webp.Options{Quality: o.Quality})
	case imagetype.AVIF:
		// AVIF compresses harder than WebP at equal quality settings;
		// shift the scale down to keep output sizes comparable.
		q := o.Quality - 15
		if q < 0 {
			q = 0
		}
		err = avif.Encode(&buf, img, avif.Options{Quality: q})
	case imagetype.PNG:
		err = png.Encode(&buf, img)
	case imagetype.JPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: o.Quality})
	default:
		return nil, unsupportedFormat(o.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", o.Format, err)
	}
	return buf.Bytes(), nil
}
