package uploads

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

const (
	thumbnailMaxSize = 300
	thumbnailQuality = 85
)

// Thumbnail decodes an uploaded image and returns a JPEG thumbnail bounded
// to 300x300. Formats the stdlib cannot decode (webp, heic and friends)
// return an error; callers treat a missing thumbnail as non-fatal.
func Thumbnail(imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumbnail := resize.Thumbnail(thumbnailMaxSize, thumbnailMaxSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumbnail, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
