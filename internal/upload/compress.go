// Package upload accepts admin image uploads, normalizes them and stores
// them in Cloudinary.
package upload

import (
	"bytes"
	"errors"
	"io"

	"github.com/disintegration/imaging"
)

const (
	MaxDimension = 1200
	JPEGQuality  = 85
	MaxFileSize  = 5 << 20
)

var ErrNotImage = errors.New("file is not a supported image")

// Compress decodes r, fits it inside MaxDimension square without enlarging
// and re-encodes it as JPEG. EXIF orientation is applied before resizing.
func Compress(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrNotImage
	}
	b := img.Bounds()
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
