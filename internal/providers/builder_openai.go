package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3/option"

	native "github.com/ncecere/readaloud/internal/adapters/openai"
	"github.com/ncecere/readaloud/internal/config"
)

func init() {
	RegisterDefinition(Definition{
		Name:         "openai",
		Description:  "OpenAI native API (translation via chat, speech, vision via multimodal chat)",
		Capabilities: []string{CapabilityChat, CapabilitySpeech, CapabilityVision},
		Builder:      buildOpenAI,
	})
}

func buildOpenAI(_ context.Context, cfg *config.Config) (Bundle, error) {
	cfg = EnsureConfig(cfg)
	apiKey := strings.TrimSpace(cfg.Providers.OpenAIKey)
	if apiKey == "" {
		return Bundle{}, fmt.Errorf("openai provider requires api key (providers.openai_key)")
	}
	adapter, err := native.New(native.Options{
		APIKey:       apiKey,
		BaseURL:      strings.TrimSpace(cfg.Providers.OpenAIBaseURL),
		Organization: strings.TrimSpace(cfg.Providers.OpenAIOrganization),
		Extra:        []option.RequestOption{option.WithRequestTimeout(cfg.Providers.RequestTimeout)},
	})
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		Name:   "openai",
		Chat:   adapter,
		Speech: adapter,
		Vision: adapter.Vision(cfg.Vision.Model),
		Health: adapter.HealthCheck,
	}, nil
}
