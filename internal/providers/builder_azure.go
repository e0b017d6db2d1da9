package providers

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/openai/openai-go/v3/option"

	"github.com/ncecere/readaloud/internal/adapters/azureopenai"
	"github.com/ncecere/readaloud/internal/adapters/azurevision"
	"github.com/ncecere/readaloud/internal/config"
)

func init() {
	RegisterDefinition(Definition{
		Name:         "azure_openai",
		Description:  "Azure OpenAI deployments (translation via chat, speech)",
		Capabilities: []string{CapabilityChat, CapabilitySpeech},
		Builder:      buildAzureOpenAI,
	})
	RegisterDefinition(Definition{
		Name:         "azure_vision",
		Description:  "Azure AI Vision image analysis (read, caption, denseCaptions)",
		Capabilities: []string{CapabilityVision},
		Builder:      buildAzureVision,
	})
}

func buildAzureOpenAI(_ context.Context, cfg *config.Config) (Bundle, error) {
	cfg = EnsureConfig(cfg)
	endpoint := strings.TrimSpace(cfg.Providers.AzureOpenAIEndpoint)
	apiKey := strings.TrimSpace(cfg.Providers.AzureOpenAIKey)
	if endpoint == "" || apiKey == "" {
		return Bundle{}, fmt.Errorf("azure_openai provider requires providers.azure_openai_endpoint and providers.azure_openai_key")
	}
	adapter, err := azureopenai.New(azureopenai.Options{
		Endpoint:    endpoint,
		APIKey:      apiKey,
		APIVersion:  strings.TrimSpace(cfg.Providers.AzureOpenAIVersion),
		Deployments: azureDeployments(cfg),
		HTTPClient:  &http.Client{Timeout: cfg.Providers.RequestTimeout},
		Extra:       []option.RequestOption{option.WithRequestTimeout(cfg.Providers.RequestTimeout)},
	})
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		Name:   "azure_openai",
		Chat:   adapter,
		Speech: adapter,
		Health: adapter.HealthCheck,
	}, nil
}

// azureDeployments names the deployments this resource is expected to serve.
func azureDeployments(cfg *config.Config) []string {
	var out []string
	if strings.EqualFold(cfg.Translation.Provider, "azure_openai") {
		out = append(out, cfg.Translation.Model)
	}
	if strings.EqualFold(cfg.Speech.Provider, "azure_openai") && !slices.Contains(out, cfg.Speech.Model) {
		out = append(out, cfg.Speech.Model)
	}
	return out
}

func buildAzureVision(_ context.Context, cfg *config.Config) (Bundle, error) {
	cfg = EnsureConfig(cfg)
	endpoint := strings.TrimSpace(cfg.Providers.AzureVisionEndpoint)
	apiKey := strings.TrimSpace(cfg.Providers.AzureVisionKey)
	if endpoint == "" || apiKey == "" {
		return Bundle{}, fmt.Errorf("azure vision requires providers.azure_vision_endpoint and providers.azure_vision_key")
	}
	adapter, err := azurevision.New(azurevision.Options{
		Endpoint:        endpoint,
		APIKey:          apiKey,
		APIVersion:      cfg.Vision.APIVersion,
		Language:        cfg.Vision.Language,
		CaptionFeatures: cfg.Vision.CaptionFeatures,
		HTTPClient:      &http.Client{Timeout: cfg.Providers.RequestTimeout},
	})
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		Name:   "azure_vision",
		Vision: adapter,
		Health: adapter.HealthCheck,
	}, nil
}
