package utils

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"

	"github.com/nfnt/resize"
)

// IsImage checks if the content type is an image format we can optimize
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/jpeg") ||
		strings.HasPrefix(contentType, "image/png")
}

// DetectContentType sniffs the media type of raw file bytes.
func DetectContentType(data []byte) string {
	return http.DetectContentType(data)
}

// OptimizeImage resizes and re-encodes an image wider than maxWidth.
// Payloads that are not resizable images are returned unchanged.
func OptimizeImage(data []byte, maxWidth uint) ([]byte, error) {
	if maxWidth == 0 || !IsImage(DetectContentType(data)) {
		return data, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if uint(img.Bounds().Dx()) <= maxWidth {
		return data, nil
	}

	// Lanczos3 keeps screenshots legible after downscaling
	m := resize.Resize(maxWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, m, &jpeg.Options{Quality: 85})
	case "png":
		err = png.Encode(&buf, m)
	default:
		// gif and friends decode but are not worth re-encoding here
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
