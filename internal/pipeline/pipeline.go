// Package pipeline runs the read-aloud flow for one request: image ingestion,
// base-text finalization, optional translation, speech-source selection and
// synthesis of the main text and the image caption.
//
// Every collaborator failure is contained at the stage that made the call and
// shows up only as an empty or absent field in the Result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ncecere/readaloud/internal/models"
	"github.com/ncecere/readaloud/internal/providers"
	"github.com/ncecere/readaloud/internal/sanitize"
	"github.com/ncecere/readaloud/internal/speech"
)

const (
	// NoTextFallback replaces a base text that sanitizes to nothing.
	NoTextFallback = "No text found in input."
	// NoSpeechFallback replaces a synthesis input that sanitizes to nothing.
	NoSpeechFallback = "No valid text was found."
)

const (
	stageIngest     = "ingest"
	stageFinalize   = "finalize"
	stageTranslate  = "translate"
	stageSelect     = "select"
	stageSynthesize = "synthesize"
	stageCaption    = "caption_synthesize"

	outcomeOK       = "ok"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
	outcomeFallback = "fallback"
)

type Extractor interface {
	Extract(ctx context.Context, path string) models.Extraction
}

type Narrator interface {
	Narrate(ctx context.Context, kind speech.Kind, text string) (speech.Artifact, error)
}

// Stager persists upload bytes for the duration of extraction. cleanup must
// be safe to call even when Stage fails.
type Stager interface {
	Stage(filename string, data []byte) (path string, cleanup func(), err error)
}

type Recorder interface {
	RecordStage(stage, outcome string)
}

// Request is one Analyze call with its flag already parsed.
type Request struct {
	Text            string
	WantTranslation bool
	Image           *models.ImageInput
}

// Result is the response payload. Nil pointers serialize as null.
type Result struct {
	ReceivedText    string  `json:"received_text"`
	ImageFilename   *string `json:"image_filename"`
	VisionFullText  *string `json:"vision_full_text"`
	TranslatedText  *string `json:"translated_text"`
	AudioURL        string  `json:"audio_url"`
	CaptionText     *string `json:"caption_text"`
	CaptionAudioURL *string `json:"caption_audio_url"`
}

type Options struct {
	Extractor  Extractor
	Translator providers.Translator
	Narrator   Narrator
	Stager     Stager
	Recorder   Recorder
	Logger     *slog.Logger
}

type Pipeline struct {
	extractor  Extractor
	translator providers.Translator
	narrator   Narrator
	stager     Stager
	recorder   Recorder
	logger     *slog.Logger
	tracer     trace.Tracer
}

func New(opts Options) (*Pipeline, error) {
	if opts.Translator == nil {
		return nil, fmt.Errorf("pipeline: translator required")
	}
	if opts.Narrator == nil {
		return nil, fmt.Errorf("pipeline: narrator required")
	}
	if opts.Extractor == nil || opts.Stager == nil {
		return nil, fmt.Errorf("pipeline: extractor and stager required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor:  opts.Extractor,
		translator: opts.Translator,
		narrator:   opts.Narrator,
		stager:     opts.Stager,
		recorder:   opts.Recorder,
		logger:     logger,
		tracer:     otel.Tracer("github.com/ncecere/readaloud/internal/pipeline"),
	}, nil
}

// state is owned by a single Analyze call and mutated stage by stage.
type state struct {
	baseText       string
	visionText     *string
	translatedText *string
	ttsSource      string
	captionText    *string
}

// Analyze never fails; the worst case is a Result with empty optional fields.
func (p *Pipeline) Analyze(ctx context.Context, req Request) Result {
	ctx, span := p.tracer.Start(ctx, "pipeline.analyze", trace.WithAttributes(
		attribute.Bool("readaloud.want_translation", req.WantTranslation),
		attribute.Bool("readaloud.has_image", req.Image != nil),
	))
	defer span.End()

	st := &state{baseText: req.Text}
	var res Result
	if req.Image != nil {
		name := req.Image.Filename
		res.ImageFilename = &name
	}

	p.ingest(ctx, st, req.Image)
	p.finalize(ctx, st)
	p.translate(ctx, st, req.WantTranslation)
	p.selectSource(ctx, st, req.WantTranslation)
	res.AudioURL, res.CaptionAudioURL = p.synthesize(ctx, st)

	res.ReceivedText = st.baseText
	res.VisionFullText = st.visionText
	res.TranslatedText = st.translatedText
	res.CaptionText = st.captionText
	return res
}

// Translate is the standalone translation operation. Unlike Analyze it
// reports collaborator failures to the caller.
func (p *Pipeline) Translate(ctx context.Context, text string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.translate_direct")
	defer span.End()

	out, err := p.translator.Translate(ctx, sanitize.Text(text, NoTextFallback))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "translation failed")
		p.record(stageTranslate, outcomeFailed)
		return "", err
	}
	p.record(stageTranslate, outcomeOK)
	return sanitize.Text(out, ""), nil
}

// Speak synthesizes text directly and returns its URL, or "" on failure.
func (p *Pipeline) Speak(ctx context.Context, text string) string {
	ctx, span := p.tracer.Start(ctx, "pipeline.speak_direct")
	defer span.End()
	return p.narrate(ctx, span, stageSynthesize, speech.KindSpeech, sanitize.Text(text, NoSpeechFallback))
}

func (p *Pipeline) record(stage, outcome string) {
	if p.recorder != nil {
		p.recorder.RecordStage(stage, outcome)
	}
}
