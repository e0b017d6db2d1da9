package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ncecere/readaloud/internal/cache"
	"github.com/ncecere/readaloud/internal/config"
	"github.com/ncecere/readaloud/internal/health"
	"github.com/ncecere/readaloud/internal/observability"
	"github.com/ncecere/readaloud/internal/pipeline"
	"github.com/ncecere/readaloud/internal/providers"
	"github.com/ncecere/readaloud/internal/speech"
	"github.com/ncecere/readaloud/internal/storage/blob"
	"github.com/ncecere/readaloud/internal/uploads"
	"github.com/ncecere/readaloud/internal/vision"
)

// Container aggregates runtime dependencies for handlers and services.
type Container struct {
	Config        *config.Config
	Logger        *slog.Logger
	Redis         *redis.Client
	Collaborators providers.Set
	Audio         blob.Store
	Narrator      *speech.Narrator
	Pipeline      *pipeline.Pipeline
	HealthMon     *health.Monitor
	Observability *observability.Provider
}

// NewContainer builds a dependency container from the provided primitives.
// redisClient may be nil, in which case translations are not cached.
func NewContainer(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	obsProvider, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}

	factory := providers.NewFactory(cfg)
	if obsProvider != nil {
		factory.WithUsageRecorder(obsProvider)
	}
	set, err := factory.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build collaborators: %w", err)
	}
	set = wireCollaborators(set, cfg, obsProvider, redisClient, logger)

	audioStore, err := blob.New(ctx, cfg.Audio)
	if err != nil {
		return nil, fmt.Errorf("init audio store: %w", err)
	}

	narratorOpts := speech.Options{
		Synthesizer:   set.Speech,
		Store:         audioStore,
		Speech:        cfg.Speech,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		URLPrefix:     cfg.Audio.URLPrefix,
	}
	if obsProvider != nil {
		narratorOpts.Recorder = obsProvider
	}
	narrator, err := speech.NewNarrator(narratorOpts)
	if err != nil {
		return nil, fmt.Errorf("init narrator: %w", err)
	}

	stager, err := uploads.NewStager(cfg.Uploads.Directory, int64(cfg.Uploads.MaxSizeMB)*1024*1024, logger)
	if err != nil {
		return nil, fmt.Errorf("init upload stager: %w", err)
	}

	pipelineOpts := pipeline.Options{
		Extractor: vision.NewExtractor(vision.Options{
			Analyzer:             set.Vision,
			MaxDimension:         cfg.Vision.MaxDimension,
			MinCaptionConfidence: cfg.Vision.MinCaptionConfidence,
			Logger:               logger,
		}),
		Translator: set.Translator,
		Narrator:   narrator,
		Stager:     stager,
		Logger:     logger,
	}
	if obsProvider != nil {
		pipelineOpts.Recorder = obsProvider
	}
	pipe, err := pipeline.New(pipelineOpts)
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	monitor := health.NewMonitor(set.Health, cfg.Health, logger)
	monitor.Start(ctx)

	return &Container{
		Config:        cfg,
		Logger:        logger,
		Redis:         redisClient,
		Collaborators: set,
		Audio:         audioStore,
		Narrator:      narrator,
		Pipeline:      pipe,
		HealthMon:     monitor,
		Observability: obsProvider,
	}, nil
}

// wireCollaborators layers the decorators from the inside out: metrics see
// every real call, the breaker guards the adapter, and cached translations
// skip both.
func wireCollaborators(set providers.Set, cfg *config.Config, obs *observability.Provider, redisClient *redis.Client, logger *slog.Logger) providers.Set {
	if obs != nil {
		set = providers.Instrument(set, obs)
	}
	set = providers.WithBreakers(set, cfg.Breaker, logger)
	if redisClient != nil {
		store := cache.NewTranslationCache(redisClient, cfg.Cache.TranslationTTL)
		set.Translator = providers.WithTranslationCache(set.Translator, store, cfg.Translation, logger)
	}
	return set
}
