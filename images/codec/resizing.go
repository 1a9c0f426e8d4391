package codec

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// DecodeImage decodes JPEG, PNG or WebP bytes into a Go-native image.Image.
//
// Arguments:
//   - b: The encoded image bytes.
//
// Returns:
//   - image.Image: The decoded image.
//   - ImageFormat: The detected container format.
//   - error: An error if the bytes are empty, of an unsupported format or corrupt.
func DecodeImage(b []byte) (image.Image, ImageFormat, error) {
	if len(b) == 0 {
		return nil, FormatUnknown, errors.New("empty image data")
	}

	format := DetectFormat(b)
	var (
		img image.Image
		err error
	)
	switch format {
	case FormatJPEG:
		img, err = jpeg.Decode(bytes.NewReader(b))
	case FormatPNG:
		img, err = png.Decode(bytes.NewReader(b))
	case FormatWebP:
		img, err = webp.Decode(bytes.NewReader(b))
	default:
		return nil, format, errors.New("unsupported image format")
	}
	if err != nil {
		return nil, format, errors.Wrapf(err, "failed to decode %s image", format)
	}

	return img, format, nil
}

// ResizeImage stretches img to exactly width x height, without preserving the
// aspect ratio, using bilinear interpolation.
//
// Arguments:
//   - img: The image to resize.
//   - width: The target width.
//   - height: The target height.
//
// Returns:
//   - image.Image: The resized image.
//   - error: An error if the target dimensions are not positive.
func ResizeImage(img image.Image, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}
	if img.Bounds().Dx() == width && img.Bounds().Dy() == height {
		return img, nil
	}
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear), nil
}

// ResizeImageToImage provides a unified interface to decode and resize images of
// different formats to image.Image, suitable for ONNX runtime inference.
//
// Returns:
//   - image.Image: The resized image.
//   - image.Point: The size of the decoded image before resizing.
//   - error: An error if decoding or resizing fails.
func ResizeImageToImage(imageBytes []byte, width, height int) (image.Image, image.Point, error) {
	if width <= 0 || height <= 0 {
		return nil, image.Point{}, errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}

	img, _, err := DecodeImage(imageBytes)
	if err != nil {
		return nil, image.Point{}, err
	}

	original := img.Bounds().Size()
	resized, err := ResizeImage(img, width, height)
	if err != nil {
		return nil, image.Point{}, err
	}
	return resized, original, nil
}
