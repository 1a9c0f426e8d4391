package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestImage() image.Image {
	// A simple 100x80 red image.
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	return img
}

func getJPEGBytes(t *testing.T) []byte {
	var buf bytes.Buffer
	err := jpeg.Encode(&buf, getTestImage(), nil)
	require.NoError(t, err)
	return buf.Bytes()
}

func getPNGBytes(t *testing.T) []byte {
	var buf bytes.Buffer
	err := png.Encode(&buf, getTestImage())
	require.NoError(t, err)
	return buf.Bytes()
}

func getWebPBytes(t *testing.T) []byte {
	var buf bytes.Buffer
	err := webp.Encode(&buf, getTestImage(), &webp.Options{Lossless: true})
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatJPEG, DetectFormat(getJPEGBytes(t)))
	assert.Equal(t, FormatPNG, DetectFormat(getPNGBytes(t)))
	assert.Equal(t, FormatWebP, DetectFormat(getWebPBytes(t)))
	assert.Equal(t, FormatUnknown, DetectFormat([]byte("not an image")))
	assert.Equal(t, FormatUnknown, DetectFormat(nil))
}

// Test the unified ResizeImageToImage interface
func TestResizeImageToImage(t *testing.T) {
	tests := []struct {
		name       string
		getBytes   func(t *testing.T) []byte
		targetW    int
		targetH    int
		shouldFail bool
	}{
		{
			name:     "JPEG resize success",
			getBytes: getJPEGBytes,
			targetW:  64, targetH: 64,
		},
		{
			name:     "WebP resize success",
			getBytes: getWebPBytes,
			targetW:  416, targetH: 416,
		},
		{
			name:     "PNG resize success",
			getBytes: getPNGBytes,
			targetW:  32, targetH: 32,
		},
		{
			name:     "Invalid dimensions",
			getBytes: getJPEGBytes,
			targetW:  0, targetH: 0,
			shouldFail: true,
		},
		{
			name:     "Negative dimensions",
			getBytes: getJPEGBytes,
			targetW:  -10, targetH: 50,
			shouldFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, original, err := ResizeImageToImage(tt.getBytes(t), tt.targetW, tt.targetH)

			if tt.shouldFail {
				assert.Error(t, err)
				assert.Nil(t, img)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, img)
			assert.Equal(t, tt.targetW, img.Bounds().Dx())
			assert.Equal(t, tt.targetH, img.Bounds().Dy())
			assert.Equal(t, image.Pt(100, 80), original)
		})
	}
}

// Test edge cases for the unified interface
func TestResizeImageToImageEdgeCases(t *testing.T) {
	img, _, err := ResizeImageToImage([]byte{}, 50, 50)
	require.Error(t, err, "Should error with empty image data")
	assert.Nil(t, img)
	assert.Contains(t, err.Error(), "empty image data")

	img, _, err = ResizeImageToImage([]byte("GIF89a......"), 50, 50)
	require.Error(t, err, "Should error with unsupported format")
	assert.Nil(t, img)
	assert.Contains(t, err.Error(), "unsupported image format")

	corrupt := append([]byte{0xFF, 0xD8, 0xFF}, []byte("garbage")...)
	_, _, err = ResizeImageToImage(corrupt, 50, 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode jpeg image")
}

func TestResizeImageKeepsMatchingSize(t *testing.T) {
	src := getTestImage()
	out, err := ResizeImage(src, 100, 80)
	require.NoError(t, err)
	assert.Same(t, src.(*image.RGBA), out.(*image.RGBA))
}

func BenchmarkResizeJPEG(b *testing.B) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, getTestImage(), nil); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := ResizeImageToImage(data, 416, 416); err != nil {
			b.Fatal(err)
		}
	}
}
