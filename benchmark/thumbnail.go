package benchmark

import (
	"github.com/cshum/vipsgen/vips"
	"github.com/nvr-ai/go-tinyyolo/images/codec"
	"github.com/pkg/errors"
)

// Thumbnail shrinks an encoded image to fit within width x height with libvips,
// keeping its aspect ratio, and re-encodes it in format.
//
// Arguments:
//   - b: A JPEG, PNG or WebP image.
//   - width: The maximum output width.
//   - height: The maximum output height.
//   - format: The output encoding.
//
// Returns:
//   - []byte: The encoded thumbnail.
//   - error: If the image cannot be loaded, resized or encoded.
func Thumbnail(b []byte, width, height int, format codec.ImageFormat) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}

	img, err := vips.NewImageFromBuffer(b, &vips.LoadOptions{
		Access: vips.AccessSequential,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load image")
	}
	defer img.Close()

	err = img.ThumbnailImage(width, &vips.ThumbnailImageOptions{
		Height: height,
		FailOn: vips.FailOnError,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to resize image")
	}

	var out []byte
	switch format {
	case codec.FormatJPEG:
		out, err = img.JpegsaveBuffer(&vips.JpegsaveBufferOptions{})
	case codec.FormatPNG:
		out, err = img.PngsaveBuffer(&vips.PngsaveBufferOptions{})
	case codec.FormatWebP:
		out, err = img.WebpsaveBuffer(&vips.WebpsaveBufferOptions{})
	default:
		return nil, errors.Errorf("unsupported image format: %s", format)
	}
	if err != nil || len(out) == 0 {
		return nil, errors.Errorf("failed to encode resized %s image", format)
	}
	return out, nil
}
