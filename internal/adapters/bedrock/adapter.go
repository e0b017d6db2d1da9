// Package bedrock serves translation through Anthropic models hosted on
// Amazon Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/ncecere/readaloud/internal/models"
)

const defaultAnthropicVersion = "bedrock-2023-05-31"

// ErrTruncated reports a reply cut off by the token limit. A partial
// translation is never returned as if it were complete.
var ErrTruncated = errors.New("bedrock: reply truncated by max_tokens")

// Options controls how the Bedrock adapter is initialised.
type Options struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	DefaultMaxTokens int32
	AnthropicVersion string
}

type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type identityCaller interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Adapter implements chat completions backed by Amazon Bedrock.
type Adapter struct {
	client    modelInvoker
	stsClient identityCaller
	opts      Options
}

// New creates a Bedrock adapter using the provided credentials/region.
func New(ctx context.Context, opts Options) (*Adapter, error) {
	if opts.Region == "" {
		return nil, errors.New("bedrock region required")
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		staticProvider := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)
		loadOpts = append(loadOpts, config.WithCredentialsProvider(staticProvider))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = opts.Region
	}
	return newAdapter(bedrockruntime.NewFromConfig(awsCfg), sts.NewFromConfig(awsCfg), opts), nil
}

func newAdapter(client modelInvoker, stsClient identityCaller, opts Options) *Adapter {
	if opts.AnthropicVersion == "" {
		opts.AnthropicVersion = defaultAnthropicVersion
	}
	return &Adapter{client: client, stsClient: stsClient, opts: opts}
}

// Chat invokes an Anthropic messages model. req.Model is the Bedrock model id.
func (a *Adapter) Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return models.ChatResponse{}, errors.New("bedrock model id required")
	}
	if len(req.Messages) == 0 {
		return models.ChatResponse{}, errors.New("at least one message is required")
	}

	body, err := a.buildAnthropicBody(req)
	if err != nil {
		return models.ChatResponse{}, err
	}
	out, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return models.ChatResponse{}, err
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return models.ChatResponse{}, fmt.Errorf("decode bedrock response: %w", err)
	}
	if parsed.StopReason == "max_tokens" {
		return models.ChatResponse{}, fmt.Errorf("%w after %d tokens", ErrTruncated, parsed.Usage.OutputTokens)
	}
	return models.ChatResponse{
		Text: parsed.text(),
		Usage: models.Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

// HealthCheck verifies credentials with STS; it never spends inference tokens.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.stsClient == nil {
		return errors.New("bedrock sts client not initialised")
	}
	_, err := a.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	return err
}

func (a *Adapter) buildAnthropicBody(req models.ChatRequest) ([]byte, error) {
	body := anthropicRequest{
		AnthropicVersion: a.opts.AnthropicVersion,
		MaxTokens:        1024,
	}
	var system []string
	for _, msg := range req.Messages {
		role := strings.ToLower(msg.Role)
		switch role {
		case "system":
			system = append(system, msg.Content)
			continue
		case "assistant":
		default:
			role = "user"
		}
		// Claude rejects two turns in a row from the same role.
		if n := len(body.Messages); n > 0 && body.Messages[n-1].Role == role {
			body.Messages[n-1].Content = append(body.Messages[n-1].Content, anthropicContent{Type: "text", Text: msg.Content})
			continue
		}
		body.Messages = append(body.Messages, anthropicMessage{
			Role:    role,
			Content: []anthropicContent{{Type: "text", Text: msg.Content}},
		})
	}
	if len(body.Messages) == 0 {
		return nil, errors.New("bedrock request needs a user message")
	}
	body.System = strings.Join(system, "\n")

	switch {
	case req.MaxTokens != nil && *req.MaxTokens > 0:
		body.MaxTokens = *req.MaxTokens
	case a.opts.DefaultMaxTokens > 0:
		body.MaxTokens = a.opts.DefaultMaxTokens
	}
	if req.Temperature != nil {
		t := float64(*req.Temperature)
		body.Temperature = &t
	}
	return json.Marshal(body)
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	MaxTokens        int32              `json:"max_tokens"`
	Temperature      *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      struct {
		InputTokens  int32 `json:"input_tokens"`
		OutputTokens int32 `json:"output_tokens"`
	} `json:"usage"`
}

func (a anthropicResponse) text() string {
	var b strings.Builder
	for _, c := range a.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}
