package composite

import (
	"bytes"
	"fmt"
	"image"

	"github.com/nfnt/resize"

	"gamechar/internal/domain"
)

// DefaultPreviewSize bounds both edges of the submission preview.
const DefaultPreviewSize = 300

// Thumbnail decodes a photo and returns a PNG no larger than size×size with
// the aspect ratio preserved. Smaller images are re-encoded unscaled.
func Thumbnail(data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return nil, domain.ErrEmptyImage
	}
	if size <= 0 {
		size = DefaultPreviewSize
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: decode: %w", err)
	}
	thumb := resize.Thumbnail(uint(size), uint(size), img, resize.Lanczos3)
	return encodePNG(thumb)
}
