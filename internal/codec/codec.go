// Package codec turns source image bytes into a resized, re-encoded
// variant. Two engines implement the same contract: the primary engine
// carries WebP and AVIF encoders (wasm-based, no cgo), the fallback is
// stdlib-only and downgrades those targets to JPEG. The engine is chosen
// once at startup.
package codec

import (
	"bytes"
	"fmt"
	"image"

	"github.com/aellingwood/glaze/internal/imagetype"
	"github.com/disintegration/imaging"
)

// Options describe one transformation. Format is the target MIME type.
type Options struct {
	Width   int
	Quality int // 1-100
	Format  string
}

// Engine transforms source bytes per Options. Implementations normalise
// EXIF orientation before resizing and never upscale: when the source is
// narrower than Options.Width it is re-encoded at its own size.
type Engine interface {
	Transform(src []byte, o Options) ([]byte, error)
	Name() string
}

// Select returns the engine for a configured codec name. "std" forces the
// stdlib fallback; anything else gets the primary engine.
func Select(name string) Engine {
	if name == "std" {
		return &Fallback{}
	}
	return &Primary{}
}

// decodeNormalized decodes src with orientation metadata applied, so the
// resize below operates on upright pixels.
func decodeNormalized(src []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding source image: %w", err)
	}
	return img, nil
}

// fitWidth resizes img down to width, preserving aspect ratio. Sources at
// or below the target width pass through untouched.
func fitWidth(img image.Image, width int) image.Image {
	if width <= 0 || img.Bounds().Dx() <= width {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

func unsupportedFormat(format string) error {
	if ext := imagetype.Extension(format); ext == "" {
		return fmt.Errorf("unknown target format %q", format)
	}
	return fmt.Errorf("cannot encode %s", format)
}
