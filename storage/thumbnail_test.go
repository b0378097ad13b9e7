package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestThumbnail_SquareSourceProducesExactSize(t *testing.T) {
	src := encodeTestJPEG(t, 600, 600)
	out, err := Thumbnail(src)
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, ThumbnailSize, decoded.Bounds().Dx())
	assert.Equal(t, ThumbnailSize, decoded.Bounds().Dy())
}

func TestThumbnail_WideSourceCoversWithoutLetterboxing(t *testing.T) {
	src := encodeTestJPEG(t, 1200, 400)
	out, err := Thumbnail(src)
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, ThumbnailSize, decoded.Bounds().Dx())
	assert.Equal(t, ThumbnailSize, decoded.Bounds().Dy())
}

func TestThumbnail_TallSourceCoversWithoutLetterboxing(t *testing.T) {
	src := encodeTestJPEG(t, 400, 1200)
	out, err := Thumbnail(src)
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, ThumbnailSize, decoded.Bounds().Dx())
	assert.Equal(t, ThumbnailSize, decoded.Bounds().Dy())
}

func TestThumbnail_RejectsUndecodable(t *testing.T) {
	_, err := Thumbnail([]byte("not an image"))
	assert.Error(t, err)
}
