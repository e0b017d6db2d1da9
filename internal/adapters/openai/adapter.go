package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/ncecere/readaloud/internal/models"
)

// Options configure the native OpenAI adapter.
type Options struct {
	APIKey       string
	BaseURL      string
	Organization string
	Extra        []option.RequestOption
}

// Adapter wraps the official OpenAI SDK for chat, speech and vision calls.
type Adapter struct {
	client *openai.Client
}

// New creates an OpenAI adapter using the provided API key and optional base URL/organization.
func New(opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai: api key required")
	}

	requestOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if strings.TrimSpace(opts.BaseURL) != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")))
	}
	if strings.TrimSpace(opts.Organization) != "" {
		requestOpts = append(requestOpts, option.WithOrganization(strings.TrimSpace(opts.Organization)))
	}
	requestOpts = append(requestOpts, opts.Extra...)

	client := openai.NewClient(requestOpts...)
	return FromClient(&client), nil
}

// FromClient wraps an already configured SDK client (used by the Azure adapter).
func FromClient(client *openai.Client) *Adapter {
	return &Adapter{client: client}
}

// Chat performs a non-streaming chat completion request.
func (a *Adapter) Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	resp, err := a.client.Chat.Completions.New(ctx, buildChatParams(req))
	if err != nil {
		return models.ChatResponse{}, err
	}
	return convertChatResponse(*resp), nil
}

// Synthesize generates speech audio via the Audio Speech API.
func (a *Adapter) Synthesize(ctx context.Context, req models.SpeechRequest) (models.SpeechAudio, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return models.SpeechAudio{}, errors.New("openai: input is required for speech synthesis")
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = "alloy"
	}
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = "mp3"
	}
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(req.Model),
		Input:          input,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(format),
	}
	if instructions := strings.TrimSpace(req.Instructions); instructions != "" {
		params.Instructions = param.NewOpt(instructions)
	}
	resp, err := a.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return models.SpeechAudio{}, err
	}
	defer resp.Body.Close()
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.SpeechAudio{}, fmt.Errorf("openai: read speech body: %w", err)
	}
	if len(audio) == 0 {
		return models.SpeechAudio{}, errors.New("openai: empty speech response")
	}
	return models.SpeechAudio{Audio: audio, Format: format}, nil
}

// HealthCheck uses the Models API as a lightweight readiness probe.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	_, err := a.client.Models.List(ctx)
	return err
}

func buildChatParams(req models.ChatRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch strings.ToLower(msg.Role) {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(float64(*req.Temperature))
	}
	if req.MaxTokens != nil {
		params.MaxTokens = param.NewOpt(int64(*req.MaxTokens))
	}
	return params
}

func convertChatResponse(resp openai.ChatCompletion) models.ChatResponse {
	out := models.ChatResponse{
		Usage: models.Usage{
			PromptTokens:     int32(resp.Usage.PromptTokens),
			CompletionTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:      int32(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content
	}
	return out
}
