// Package imageprep validates uploaded images and downsizes oversized ones
// before they are sent to a vision provider.
package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/ncecere/readaloud/internal/models"
)

var ErrUnsupportedImage = errors.New("imageprep: unsupported or corrupt image")

const jpegQuality = 85

// Prepare returns the image unchanged when both sides fit within maxDimension.
// Larger images are re-oriented, fitted with Lanczos resampling and re-encoded
// as PNG (png, gif) or JPEG (everything else). maxDimension <= 0 disables
// resizing but still validates the image header.
func Prepare(in models.ImageInput, maxDimension int) (models.ImageInput, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(in.Data))
	if err != nil {
		return models.ImageInput{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if maxDimension <= 0 || (cfg.Width <= maxDimension && cfg.Height <= maxDimension) {
		if in.ContentType == "" {
			in.ContentType = "image/" + format
		}
		return in, nil
	}

	img, err := imaging.Decode(bytes.NewReader(in.Data), imaging.AutoOrientation(true))
	if err != nil {
		return models.ImageInput{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	fitted := imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)

	out := models.ImageInput{Filename: in.Filename}
	var buf bytes.Buffer
	switch format {
	case "png", "gif":
		err = imaging.Encode(&buf, fitted, imaging.PNG)
		out.ContentType = "image/png"
	default:
		err = imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
		out.ContentType = "image/jpeg"
	}
	if err != nil {
		return models.ImageInput{}, fmt.Errorf("encode resized image: %w", err)
	}
	out.Data = buf.Bytes()
	return out, nil
}
