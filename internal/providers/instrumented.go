package providers

import (
	"context"
	"errors"
	"time"

	"github.com/ncecere/readaloud/internal/models"
)

// Observer receives the latency and outcome of every collaborator call.
type Observer interface {
	ObserveCollaborator(collaborator, outcome string, elapsed time.Duration)
}

// Instrument reports every call made through the set to obs.
func Instrument(set Set, obs Observer) Set {
	if obs == nil {
		return set
	}
	if set.Vision != nil {
		set.Vision = &observedVision{next: set.Vision, obs: obs}
	}
	if set.Translator != nil {
		set.Translator = &observedTranslator{next: set.Translator, obs: obs}
	}
	if set.Speech != nil {
		set.Speech = &observedSpeech{next: set.Speech, obs: obs}
	}
	return set
}

func observe(obs Observer, collaborator string, start time.Time, err error) {
	obs.ObserveCollaborator(collaborator, outcome(err), time.Since(start))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

type observedVision struct {
	next ImageAnalyzer
	obs  Observer
}

func (o *observedVision) ReadText(ctx context.Context, img models.ImageInput) (string, error) {
	start := time.Now()
	text, err := o.next.ReadText(ctx, img)
	observe(o.obs, "ocr", start, err)
	return text, err
}

func (o *observedVision) DescribeImage(ctx context.Context, img models.ImageInput) ([]models.CaptionCandidate, error) {
	start := time.Now()
	captions, err := o.next.DescribeImage(ctx, img)
	observe(o.obs, "caption", start, err)
	return captions, err
}

type observedTranslator struct {
	next Translator
	obs  Observer
}

func (o *observedTranslator) Translate(ctx context.Context, text string) (string, error) {
	start := time.Now()
	out, err := o.next.Translate(ctx, text)
	observe(o.obs, "translation", start, err)
	return out, err
}

type observedSpeech struct {
	next SpeechSynthesizer
	obs  Observer
}

func (o *observedSpeech) Synthesize(ctx context.Context, req models.SpeechRequest) (models.SpeechAudio, error) {
	start := time.Now()
	audio, err := o.next.Synthesize(ctx, req)
	observe(o.obs, "speech", start, err)
	return audio, err
}
