package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"
)

// ThumbnailSize is the fixed square dimension identification thumbnails
// are cropped and scaled to.
const ThumbnailSize = 300

// ThumbnailQuality is the JPEG quality thumbnails are re-encoded at.
const ThumbnailQuality = 80

// Thumbnail decodes src (any of jpeg/png/gif), cover-fits it into a
// ThumbnailSize x ThumbnailSize square (scale to fill, center-crop the
// overflow), and re-encodes it as a quality-80 JPEG. There is no
// dedicated image-processing library anywhere in the corpus, so this
// stays on the standard library's image/draw nearest-neighbor scaler
// rather than reaching for a third-party resizer.
func Thumbnail(src []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("storage: decode image: %w", err)
	}

	cropped := coverCrop(img, ThumbnailSize, ThumbnailSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: ThumbnailQuality}); err != nil {
		return nil, fmt.Errorf("storage: encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// coverCrop scales img so it fully covers a w x h box (no letterboxing),
// then crops the centered overflow, matching a CSS object-fit: cover.
func coverCrop(img image.Image, w, h int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	scale := float64(w) / float64(srcW)
	if s := float64(h) / float64(srcH); s > scale {
		scale = s
	}
	scaledW := int(float64(srcW)*scale + 0.5)
	scaledH := int(float64(srcH)*scale + 0.5)

	scaled := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	for y := 0; y < scaledH; y++ {
		sy := bounds.Min.Y + int(float64(y)/scale)
		for x := 0; x < scaledW; x++ {
			sx := bounds.Min.X + int(float64(x)/scale)
			scaled.Set(x, y, img.At(sx, sy))
		}
	}

	offsetX := (scaledW - w) / 2
	offsetY := (scaledH - h) / 2
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), scaled, image.Pt(offsetX, offsetY), draw.Src)
	return dst
}
