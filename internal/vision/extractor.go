// Package vision turns a staged image file into OCR text and at most one
// caption, containing every failure of the underlying analyzer.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ncecere/readaloud/internal/imageprep"
	"github.com/ncecere/readaloud/internal/models"
	"github.com/ncecere/readaloud/internal/providers"
)

// ErrNoAnalyzer is reported when vision is disabled in configuration.
var ErrNoAnalyzer = errors.New("vision: no image analyzer configured")

type Options struct {
	Analyzer             providers.ImageAnalyzer
	MaxDimension         int
	MinCaptionConfidence float64
	Logger               *slog.Logger
}

type Extractor struct {
	analyzer      providers.ImageAnalyzer
	maxDimension  int
	minConfidence float64
	logger        *slog.Logger
}

func NewExtractor(opts Options) *Extractor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		analyzer:      opts.Analyzer,
		maxDimension:  opts.MaxDimension,
		minConfidence: opts.MinCaptionConfidence,
		logger:        logger,
	}
}

// Extract never fails: a broken image or analyzer yields an empty text and no
// caption, and OCR and captioning cannot spoil each other's result.
func (e *Extractor) Extract(ctx context.Context, path string) models.Extraction {
	img, err := e.load(path)
	if err != nil {
		e.logger.WarnContext(ctx, "image ingestion failed", slog.String("error", err.Error()))
		return models.Extraction{}
	}

	var out models.Extraction
	if err := contain(func() error {
		text, err := e.readText(ctx, img)
		out.Text = text
		return err
	}); err != nil {
		out.Text = ""
		e.logFailure(ctx, "ocr", err)
	}

	if err := contain(func() error {
		candidates, err := e.describe(ctx, img)
		if err != nil {
			return err
		}
		out.Caption = SelectCaption(candidates, e.minConfidence)
		return nil
	}); err != nil {
		out.Caption = nil
		e.logFailure(ctx, "caption", err)
	}
	return out
}

func (e *Extractor) load(path string) (models.ImageInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ImageInput{}, fmt.Errorf("read staged image: %w", err)
	}
	return imageprep.Prepare(models.ImageInput{Data: data, Filename: filepath.Base(path)}, e.maxDimension)
}

func (e *Extractor) readText(ctx context.Context, img models.ImageInput) (string, error) {
	if e.analyzer == nil {
		return "", ErrNoAnalyzer
	}
	return e.analyzer.ReadText(ctx, img)
}

func (e *Extractor) describe(ctx context.Context, img models.ImageInput) ([]models.CaptionCandidate, error) {
	if e.analyzer == nil {
		return nil, ErrNoAnalyzer
	}
	return e.analyzer.DescribeImage(ctx, img)
}

func (e *Extractor) logFailure(ctx context.Context, step string, err error) {
	if errors.Is(err, ErrNoAnalyzer) {
		e.logger.DebugContext(ctx, "vision disabled", slog.String("step", step))
		return
	}
	e.logger.WarnContext(ctx, "vision step failed", slog.String("step", step), slog.String("error", err.Error()))
}

// contain runs fn and converts a panic into an error.
func contain(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vision: recovered panic: %v", r)
		}
	}()
	return fn()
}
