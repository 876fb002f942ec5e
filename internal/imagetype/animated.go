package imagetype

import (
	"bytes"
	"encoding/binary"
)

// IsAnimated reports whether buf holds a multi-frame image. Only GIF, APNG,
// and WebP payloads can return true; anything else is treated as a single
// still frame.
func IsAnimated(buf []byte) bool {
	switch Detect(buf) {
	case GIF:
		return gifFrameCount(buf) > 1
	case PNG:
		return apngHasFrameControl(buf)
	case WEBP:
		return webpAnimationFlag(buf)
	}
	return false
}

// gifFrameCount walks the GIF block structure and counts image descriptors.
// Parsing stops at the trailer, on a malformed block, or as soon as a
// second frame is seen.
func gifFrameCount(buf []byte) int {
	// Header (6) + logical screen descriptor (7).
	if len(buf) < 13 {
		return 0
	}
	pos := 13

	// Global color table: present if the high bit of the packed field is
	// set; size is 2^((fields&7)+1) RGB entries.
	fields := buf[10]
	if fields&0x80 != 0 {
		pos += 3 * (2 << (fields & 0x07))
	}

	frames := 0
	for pos < len(buf) {
		switch buf[pos] {
		case 0x21: // extension block
			pos += 2 // introducer + label
			pos = skipSubBlocks(buf, pos)
		case 0x2c: // image descriptor
			frames++
			if frames > 1 {
				return frames
			}
			if pos+10 > len(buf) {
				return frames
			}
			local := buf[pos+9]
			pos += 10
			if local&0x80 != 0 {
				pos += 3 * (2 << (local & 0x07))
			}
			pos++ // LZW minimum code size
			pos = skipSubBlocks(buf, pos)
		case 0x3b: // trailer
			return frames
		default:
			return frames
		}
		if pos < 0 {
			return frames
		}
	}
	return frames
}

// skipSubBlocks advances past a GIF data sub-block sequence, returning the
// position after the block terminator, or -1 if the data is truncated.
func skipSubBlocks(buf []byte, pos int) int {
	for pos < len(buf) {
		size := int(buf[pos])
		pos++
		if size == 0 {
			return pos
		}
		pos += size
	}
	return -1
}

// apngHasFrameControl reports whether an acTL (animation control) chunk
// appears before the first IDAT chunk, which is how APNG marks itself.
func apngHasFrameControl(buf []byte) bool {
	pos := 8 // past the PNG signature
	for pos+8 <= len(buf) {
		length := binary.BigEndian.Uint32(buf[pos : pos+4])
		tag := buf[pos+4 : pos+8]
		if bytes.Equal(tag, []byte("acTL")) {
			return true
		}
		if bytes.Equal(tag, []byte("IDAT")) || bytes.Equal(tag, []byte("IEND")) {
			return false
		}
		// chunk = length + tag + data + CRC
		pos += 12 + int(length)
		if pos < 0 {
			return false
		}
	}
	return false
}

// webpAnimationFlag reports whether the WebP extended header (VP8X) has its
// animation bit set.
func webpAnimationFlag(buf []byte) bool {
	// RIFF header (12) + chunk tag (4) + chunk size (4) + flags byte.
	if len(buf) < 21 {
		return false
	}
	if !bytes.Equal(buf[12:16], []byte("VP8X")) {
		return false
	}
	return buf[20]&0x02 != 0
}
