package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/ncecere/readaloud/internal/models"
)

const (
	ocrPrompt = "Transcribe every piece of text visible in this image, in reading order, exactly as written. " +
		"Respond with only the transcribed text. If the image contains no text, respond with nothing."
	captionPrompt = "Describe this image in one short sentence. Respond with JSON only, shaped as " +
		`{"captions":[{"text":"<description>","confidence":<number between 0 and 1>}]}.`
)

// Vision answers OCR and captioning questions with a multimodal chat model.
type Vision struct {
	adapter   *Adapter
	model     string
	maxTokens int64
}

func (a *Adapter) Vision(model string) *Vision {
	return &Vision{adapter: a, model: model, maxTokens: 1024}
}

func (v *Vision) ReadText(ctx context.Context, img models.ImageInput) (string, error) {
	text, err := v.ask(ctx, img, ocrPrompt)
	if err != nil {
		return "", fmt.Errorf("openai vision ocr: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (v *Vision) DescribeImage(ctx context.Context, img models.ImageInput) ([]models.CaptionCandidate, error) {
	text, err := v.ask(ctx, img, captionPrompt)
	if err != nil {
		return nil, fmt.Errorf("openai vision caption: %w", err)
	}
	return parseCaptions(text), nil
}

func (v *Vision) ask(ctx context.Context, img models.ImageInput, prompt string) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("image is empty")
	}
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURI(img)}),
	}
	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(v.model),
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		MaxTokens: param.NewOpt(v.maxTokens),
	}
	resp, err := v.adapter.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	return convertChatResponse(*resp).Text, nil
}

func dataURI(img models.ImageInput) string {
	contentType := img.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(img.Data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

type captionEnvelope struct {
	Captions []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"captions"`
}

// parseCaptions accepts the requested JSON envelope, optionally wrapped in a
// markdown fence. Any other non-empty reply counts as one certain caption.
func parseCaptions(raw string) []models.CaptionCandidate {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	var env captionEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return []models.CaptionCandidate{{Text: body, Confidence: 1}}
	}
	out := make([]models.CaptionCandidate, 0, len(env.Captions))
	for _, c := range env.Captions {
		out = append(out, models.CaptionCandidate{Text: c.Text, Confidence: c.Confidence})
	}
	return out
}
