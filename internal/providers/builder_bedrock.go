package providers

import (
	"context"
	"strings"

	"github.com/ncecere/readaloud/internal/adapters/bedrock"
	"github.com/ncecere/readaloud/internal/config"
)

func init() {
	RegisterDefinition(Definition{
		Name:         "bedrock",
		Description:  "AWS Bedrock Anthropic models (translation via chat)",
		Capabilities: []string{CapabilityChat},
		Builder:      buildBedrock,
	})
}

func buildBedrock(ctx context.Context, cfg *config.Config) (Bundle, error) {
	cfg = EnsureConfig(cfg)
	adapter, err := bedrock.New(ctx, bedrock.Options{
		Region:           strings.TrimSpace(cfg.Providers.AWSRegion),
		Profile:          strings.TrimSpace(cfg.Providers.AWSProfile),
		AccessKeyID:      strings.TrimSpace(cfg.Providers.AWSAccessKeyID),
		SecretAccessKey:  strings.TrimSpace(cfg.Providers.AWSSecretAccessKey),
		SessionToken:     strings.TrimSpace(cfg.Providers.AWSSessionToken),
		DefaultMaxTokens: cfg.Translation.MaxTokens,
	})
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		Name:   "bedrock",
		Chat:   adapter,
		Health: adapter.HealthCheck,
	}, nil
}
