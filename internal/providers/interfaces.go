package providers

import (
	"context"

	"github.com/ncecere/readaloud/internal/models"
)

type ChatCompletions interface {
	Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)
}

// ImageAnalyzer extracts text and candidate captions from an image. The two
// calls are independent so one can fail without affecting the other.
type ImageAnalyzer interface {
	ReadText(ctx context.Context, img models.ImageInput) (string, error)
	DescribeImage(ctx context.Context, img models.ImageInput) ([]models.CaptionCandidate, error)
}

// Translator turns non-empty text into the configured target language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req models.SpeechRequest) (models.SpeechAudio, error)
}

type HealthFunc func(ctx context.Context) error
