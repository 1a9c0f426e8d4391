// Package codec - Snapshot format detection, decoding and resizing.
package codec

import "bytes"

// ImageFormat represents supported image formats
type ImageFormat string

const (
	FormatJPEG    ImageFormat = "jpeg"
	FormatWebP    ImageFormat = "webp"
	FormatPNG     ImageFormat = "png"
	FormatUnknown ImageFormat = "unknown"
)

// DetectFormat sniffs the container format from the leading magic bytes.
func DetectFormat(b []byte) ImageFormat {
	switch {
	case len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return FormatJPEG
	case len(b) >= 8 && bytes.Equal(b[:8], []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG
	case len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return FormatWebP
	default:
		return FormatUnknown
	}
}
