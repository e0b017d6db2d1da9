package providers

import (
	"context"
	"fmt"

	"github.com/ncecere/readaloud/internal/config"
)

// Builder constructs the adapters one provider offers.
type Builder func(ctx context.Context, cfg *config.Config) (Bundle, error)

// Bundle groups the capabilities of a single provider. Unsupported
// capabilities are nil.
type Bundle struct {
	Name   string
	Chat   ChatCompletions
	Speech SpeechSynthesizer
	Vision ImageAnalyzer
	Health HealthFunc
}

// Set is the resolved collaborator wiring for the pipeline.
type Set struct {
	Vision     ImageAnalyzer
	Translator Translator
	Speech     SpeechSynthesizer
	Health     map[string]HealthFunc
}

// Factory builds collaborators from configuration using a registry of builders.
type Factory struct {
	cfg      *config.Config
	builders map[string]Builder
	usage    UsageRecorder
}

// NewFactory creates a factory with the default provider registry.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: EnsureConfig(cfg), builders: registeredBuilders()}
}

// WithUsageRecorder reports translation token usage to r.
func (f *Factory) WithUsageRecorder(r UsageRecorder) *Factory {
	f.usage = r
	return f
}

// Register allows tests or callers to override provider builders.
func (f *Factory) Register(name string, builder Builder) {
	if f.builders == nil {
		f.builders = make(map[string]Builder)
	}
	f.builders[name] = builder
}

// Build instantiates each configured provider once and picks the capability
// every stage needs from it.
func (f *Factory) Build(ctx context.Context) (Set, error) {
	bundles := make(map[string]Bundle)
	resolve := func(name, capability string) (Bundle, error) {
		if b, ok := bundles[name]; ok {
			return b, nil
		}
		builder, ok := f.builders[name]
		if !ok {
			return Bundle{}, fmt.Errorf("%s provider %q unsupported", capability, name)
		}
		if def, known := Lookup(name); known && !def.Supports(capability) {
			return Bundle{}, fmt.Errorf("provider %q does not offer %s", name, capability)
		}
		b, err := builder(ctx, f.cfg)
		if err != nil {
			return Bundle{}, fmt.Errorf("%s provider %q: %w", capability, name, err)
		}
		if b.Name == "" {
			b.Name = name
		}
		bundles[name] = b
		return b, nil
	}

	set := Set{Health: make(map[string]HealthFunc)}

	if name := visionProviderName(f.cfg.Vision.Provider); name != "" {
		b, err := resolve(name, CapabilityVision)
		if err != nil {
			return Set{}, err
		}
		if b.Vision == nil {
			return Set{}, fmt.Errorf("vision provider %q cannot analyze images", name)
		}
		set.Vision = b.Vision
	}

	b, err := resolve(f.cfg.Translation.Provider, CapabilityChat)
	if err != nil {
		return Set{}, err
	}
	if b.Chat == nil {
		return Set{}, fmt.Errorf("translation provider %q cannot translate", b.Name)
	}
	set.Translator = newChatTranslator(b.Chat, f.cfg.Translation, f.usage)

	b, err = resolve(f.cfg.Speech.Provider, CapabilitySpeech)
	if err != nil {
		return Set{}, err
	}
	if b.Speech == nil {
		return Set{}, fmt.Errorf("speech provider %q cannot synthesize audio", b.Name)
	}
	set.Speech = b.Speech

	for name, bundle := range bundles {
		if bundle.Health != nil {
			set.Health[name] = bundle.Health
		}
	}
	return set, nil
}

// visionProviderName maps the vision.provider setting to a registry name.
func visionProviderName(provider string) string {
	switch provider {
	case "", "none":
		return ""
	case "azure":
		return "azure_vision"
	default:
		return provider
	}
}
