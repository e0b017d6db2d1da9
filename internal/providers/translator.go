package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/ncecere/readaloud/internal/config"
	"github.com/ncecere/readaloud/internal/models"
)

// ErrEmptyTranslation is returned when the model answers with blank text.
var ErrEmptyTranslation = errors.New("providers: translation came back empty")

// UsageRecorder receives the token counts a chat model reports.
type UsageRecorder interface {
	RecordTokens(collaborator string, usage models.Usage)
}

type chatTranslator struct {
	chat      ChatCompletions
	usage     UsageRecorder
	model     string
	source    string
	target    string
	maxTokens int32
}

// NewChatTranslator translates by prompting a chat model.
func NewChatTranslator(chat ChatCompletions, cfg config.TranslationConfig) Translator {
	return newChatTranslator(chat, cfg, nil)
}

func newChatTranslator(chat ChatCompletions, cfg config.TranslationConfig, usage UsageRecorder) *chatTranslator {
	return &chatTranslator{
		chat:      chat,
		usage:     usage,
		model:     cfg.Model,
		source:    cfg.SourceLanguage,
		target:    cfg.TargetLanguage,
		maxTokens: cfg.MaxTokens,
	}
}

func (t *chatTranslator) Translate(ctx context.Context, text string) (string, error) {
	req := models.TranslationRequest{
		Model:  t.model,
		Text:   text,
		Source: t.source,
		Target: t.target,
	}.ChatRequest()
	if t.maxTokens > 0 {
		maxTokens := t.maxTokens
		req.MaxTokens = &maxTokens
	}
	resp, err := t.chat.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	if t.usage != nil {
		t.usage.RecordTokens("translation", resp.Usage)
	}
	out := strings.TrimSpace(resp.Text)
	if out == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}
