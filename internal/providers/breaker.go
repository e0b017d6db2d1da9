package providers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/ncecere/readaloud/internal/config"
	"github.com/ncecere/readaloud/internal/models"
)

// WithBreakers wraps every collaborator in the set with its own circuit
// breaker. A disabled config returns the set unchanged.
func WithBreakers(set Set, cfg config.BreakerConfig, logger *slog.Logger) Set {
	if !cfg.Enabled {
		return set
	}
	if logger == nil {
		logger = slog.Default()
	}
	if set.Vision != nil {
		set.Vision = &breakerVision{next: set.Vision, cb: newBreaker("vision", cfg, logger)}
	}
	if set.Translator != nil {
		set.Translator = &breakerTranslator{next: set.Translator, cb: newBreaker("translation", cfg, logger)}
	}
	if set.Speech != nil {
		set.Speech = &breakerSpeech{next: set.Speech, cb: newBreaker("speech", cfg, logger)}
	}
	return set
}

func newBreaker(name string, cfg config.BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("collaborator breaker state change", "collaborator", name, "from", from.String(), "to", to.String())
		},
	})
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}

type breakerVision struct {
	next ImageAnalyzer
	cb   *gobreaker.CircuitBreaker
}

func (b *breakerVision) ReadText(ctx context.Context, img models.ImageInput) (string, error) {
	return execute(b.cb, func() (string, error) { return b.next.ReadText(ctx, img) })
}

func (b *breakerVision) DescribeImage(ctx context.Context, img models.ImageInput) ([]models.CaptionCandidate, error) {
	return execute(b.cb, func() ([]models.CaptionCandidate, error) { return b.next.DescribeImage(ctx, img) })
}

type breakerTranslator struct {
	next Translator
	cb   *gobreaker.CircuitBreaker
}

func (b *breakerTranslator) Translate(ctx context.Context, text string) (string, error) {
	return execute(b.cb, func() (string, error) { return b.next.Translate(ctx, text) })
}

type breakerSpeech struct {
	next SpeechSynthesizer
	cb   *gobreaker.CircuitBreaker
}

func (b *breakerSpeech) Synthesize(ctx context.Context, req models.SpeechRequest) (models.SpeechAudio, error) {
	return execute(b.cb, func() (models.SpeechAudio, error) { return b.next.Synthesize(ctx, req) })
}
