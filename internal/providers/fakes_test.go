package providers

import (
	"context"
	"sync"

	"github.com/ncecere/readaloud/internal/models"
)

type fakeChat struct {
	mu    sync.Mutex
	reply string
	usage models.Usage
	err   error
	calls []models.ChatRequest
}

func (f *fakeChat) Chat(_ context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return models.ChatResponse{}, f.err
	}
	return models.ChatResponse{Text: f.reply, Usage: f.usage}, nil
}

type fakeTranslator struct {
	out   string
	err   error
	calls int
}

func (f *fakeTranslator) Translate(context.Context, string) (string, error) {
	f.calls++
	return f.out, f.err
}

type fakeSpeech struct {
	err   error
	calls int
}

func (f *fakeSpeech) Synthesize(_ context.Context, req models.SpeechRequest) (models.SpeechAudio, error) {
	f.calls++
	if f.err != nil {
		return models.SpeechAudio{}, f.err
	}
	return models.SpeechAudio{Audio: []byte(req.Input), Format: "mp3"}, nil
}

type fakeVision struct {
	text     string
	captions []models.CaptionCandidate
	err      error
}

func (f *fakeVision) ReadText(context.Context, models.ImageInput) (string, error) {
	return f.text, f.err
}

func (f *fakeVision) DescribeImage(context.Context, models.ImageInput) ([]models.CaptionCandidate, error) {
	return f.captions, f.err
}
