package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ncecere/readaloud/internal/models"
	"github.com/ncecere/readaloud/internal/sanitize"
	"github.com/ncecere/readaloud/internal/speech"
)

// ingest stages the upload, extracts text and caption, and removes the staged
// file before returning on every path. Non-empty OCR text replaces the text
// the user typed.
func (p *Pipeline) ingest(ctx context.Context, st *state, img *models.ImageInput) {
	if img == nil {
		p.record(stageIngest, outcomeSkipped)
		return
	}
	ctx, span := p.tracer.Start(ctx, "pipeline.ingest")
	defer span.End()

	extraction, err := p.extract(ctx, img)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingestion failed")
		p.logger.WarnContext(ctx, "image ingestion failed", slog.String("error", err.Error()))
		p.record(stageIngest, outcomeFailed)
		return
	}

	if text := sanitize.Maybe(extraction.Text); text != nil {
		st.visionText = text
		st.baseText = *text
	}
	if extraction.Caption != nil {
		st.captionText = sanitize.Maybe(*extraction.Caption)
	}
	span.SetAttributes(
		attribute.Bool("readaloud.ocr_text", st.visionText != nil),
		attribute.Bool("readaloud.caption", st.captionText != nil),
	)
	p.record(stageIngest, outcomeOK)
}

func (p *Pipeline) extract(ctx context.Context, img *models.ImageInput) (out models.Extraction, err error) {
	path, cleanup, err := p.stager.Stage(img.Filename, img.Data)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return models.Extraction{}, fmt.Errorf("stage upload: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = models.Extraction{}, fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return p.extractor.Extract(ctx, path), nil
}

func (p *Pipeline) finalize(_ context.Context, st *state) {
	st.baseText = sanitize.Text(st.baseText, NoTextFallback)
	if st.baseText == NoTextFallback {
		p.record(stageFinalize, outcomeFallback)
		return
	}
	p.record(stageFinalize, outcomeOK)
}

func (p *Pipeline) translate(ctx context.Context, st *state, want bool) {
	if !want {
		p.record(stageTranslate, outcomeSkipped)
		return
	}
	ctx, span := p.tracer.Start(ctx, "pipeline.translate")
	defer span.End()

	out, err := p.translator.Translate(ctx, st.baseText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "translation failed")
		p.logger.WarnContext(ctx, "translation failed", slog.String("error", err.Error()))
		p.record(stageTranslate, outcomeFailed)
		return
	}
	st.translatedText = sanitize.Maybe(out)
	if st.translatedText == nil {
		p.record(stageTranslate, outcomeFailed)
		return
	}
	p.record(stageTranslate, outcomeOK)
}

// selectSource prefers the translation only when it was requested and produced.
func (p *Pipeline) selectSource(_ context.Context, st *state, want bool) {
	if want && st.translatedText != nil {
		st.ttsSource = *st.translatedText
		p.record(stageSelect, "translated")
		return
	}
	st.ttsSource = st.baseText
	p.record(stageSelect, "base")
}

func (p *Pipeline) synthesize(ctx context.Context, st *state) (string, *string) {
	ctx, span := p.tracer.Start(ctx, "pipeline.synthesize")
	defer span.End()

	audioURL := p.narrate(ctx, span, stageSynthesize, speech.KindSpeech, sanitize.Text(st.ttsSource, NoSpeechFallback))

	if st.captionText == nil {
		p.record(stageCaption, outcomeSkipped)
		return audioURL, nil
	}
	caption := sanitize.Optional(st.captionText, "")
	if caption == "" {
		st.captionText = nil
		p.record(stageCaption, outcomeSkipped)
		return audioURL, nil
	}
	captionURL := p.narrate(ctx, span, stageCaption, speech.KindCaption, caption)
	if captionURL == "" {
		return audioURL, nil
	}
	return audioURL, &captionURL
}

// narrate turns a synthesis failure into an empty URL.
func (p *Pipeline) narrate(ctx context.Context, span trace.Span, stage string, kind speech.Kind, text string) string {
	artifact, err := p.narrator.Narrate(ctx, kind, text)
	if err != nil {
		span.RecordError(err, trace.WithAttributes(attribute.String("readaloud.artifact_kind", string(kind))))
		p.logger.WarnContext(ctx, "speech synthesis failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		p.record(stage, outcomeFailed)
		return ""
	}
	p.record(stage, outcomeOK)
	return artifact.URL
}
