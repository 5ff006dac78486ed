package imagecheck

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(color.RGBA{B: 255, A: 255}), nil))
	return buf.Bytes()
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(color.RGBA{G: 255, A: 255})))
	return buf.Bytes()
}

func encodeGIF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, solid(color.RGBA{R: 255, A: 255}), nil))
	return buf.Bytes()
}

func newValidator() *Validator {
	return NewValidator(&cfg.ValidationCfg{
		AllowedTypes: []string{"image/jpeg", "image/png", "image/gif"},
		MaxFileSize:  5 * 1024 * 1024,
	})
}

func TestValidate_AcceptsSupportedImages(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "jpeg", data: encodeJPEG(t), want: "image/jpeg"},
		{name: "png", data: encodePNG(t), want: "image/png"},
		{name: "gif", data: encodeGIF(t), want: "image/gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mimeType, err := v.Validate(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mimeType)
		})
	}
}

func TestValidate_RejectsPlainText(t *testing.T) {
	_, err := newValidator().Validate([]byte("Hello, this is a plain text file."))

	assert.ErrorIs(t, err, e.ErrUnsupportedMediaType)
	assert.Contains(t, err.Error(), "text/plain")
}

func TestValidate_RejectsDisallowedType(t *testing.T) {
	v := NewValidator(&cfg.ValidationCfg{AllowedTypes: []string{"image/jpeg"}, MaxFileSize: 1 << 20})

	_, err := v.Validate(encodePNG(t))
	assert.ErrorIs(t, err, e.ErrUnsupportedMediaType)
}

func TestValidate_RejectsTruncatedImage(t *testing.T) {
	data := encodePNG(t)

	_, err := newValidator().Validate(data[:len(data)/2])
	assert.ErrorIs(t, err, e.ErrCorruptedImage)
	assert.Equal(t, "invalid image: the image is corrupted or not a valid format", e.ErrCorruptedImage.Error())
}

func TestCheckFileSize(t *testing.T) {
	v := NewValidator(&cfg.ValidationCfg{MaxFileSize: 5 * 1024 * 1024})

	assert.NoError(t, v.CheckFileSize(make([]byte, 5*1024*1024)))

	err := v.CheckFileSize(make([]byte, 5*1024*1024+1))
	assert.ErrorIs(t, err, e.ErrFileTooLarge)
	assert.Contains(t, err.Error(), "file size exceeds the maximum limit of 5.00 MB")

	v = NewValidator(&cfg.ValidationCfg{MaxFileSize: 1536 * 1024})
	err = v.CheckFileSize(make([]byte, 2*1024*1024))
	assert.Contains(t, err.Error(), "1.50 MB")
}

func TestCheckMagicNumber(t *testing.T) {
	v := newValidator()

	assert.NoError(t, v.CheckMagicNumber(encodeJPEG(t)))
	assert.NoError(t, v.CheckMagicNumber([]byte("GIF89a......")))

	err := v.CheckMagicNumber([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "))
	assert.ErrorIs(t, err, e.ErrInvalidMagicNumber)
	assert.Contains(t, err.Error(), "image/webp")

	err = v.CheckMagicNumber([]byte{0x00, 0x01})
	assert.ErrorIs(t, err, e.ErrInvalidMagicNumber)
	assert.Contains(t, err.Error(), "unknown")
}
