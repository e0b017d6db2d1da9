package models

import (
	"bytes"
	"io"
)

// ImageInput stores an uploaded image in memory so every vision sub-step can
// re-read the same bytes.
type ImageInput struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Reader returns a fresh ReadCloser for the stored image bytes.
func (in ImageInput) Reader() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(in.Data))
}

// Size exposes the number of bytes in the image payload.
func (in ImageInput) Size() int64 {
	return int64(len(in.Data))
}

// CaptionCandidate is one natural-language description proposed by a vision
// engine together with its confidence score.
type CaptionCandidate struct {
	Text       string
	Confidence float64
}

// Extraction is the outcome of running OCR and captioning over one image.
// Text may be empty and Caption nil; neither is an error.
type Extraction struct {
	Text    string
	Caption *string
}
