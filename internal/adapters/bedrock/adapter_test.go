package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/readaloud/internal/models"
)

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

type fakeIdentity struct{ err error }

func (f fakeIdentity) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{}, f.err
}

func TestChatBuildsAnthropicPayload(t *testing.T) {
	invoker := &fakeInvoker{body: `{"id":"msg_1","content":[{"type":"text","text":"Hallo "},{"type":"text","text":"wereld"}],"stop_reason":"end_turn","usage":{"input_tokens":9,"output_tokens":3}}`}
	adapter := newAdapter(invoker, fakeIdentity{}, Options{DefaultMaxTokens: 256})

	temp := float32(0.2)
	resp, err := adapter.Chat(context.Background(), models.ChatRequest{
		Model:       "anthropic.claude-3-haiku-20240307-v1:0",
		Temperature: &temp,
		Messages: []models.ChatMessage{
			{Role: "system", Content: "translate to Dutch"},
			{Role: "user", Content: "Hello world"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Hallo wereld", resp.Text)
	require.Equal(t, int32(12), resp.Usage.TotalTokens)
	require.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", aws.ToString(invoker.input.ModelId))

	var sent anthropicRequest
	require.NoError(t, json.Unmarshal(invoker.input.Body, &sent))
	require.Equal(t, defaultAnthropicVersion, sent.AnthropicVersion)
	require.Equal(t, "translate to Dutch", sent.System)
	require.Equal(t, int32(256), sent.MaxTokens)
	require.Len(t, sent.Messages, 1)
	require.Equal(t, "user", sent.Messages[0].Role)
	require.NotNil(t, sent.Temperature)
	require.InDelta(t, 0.2, *sent.Temperature, 0.0001)
}

func TestChatMergesConsecutiveTurns(t *testing.T) {
	invoker := &fakeInvoker{body: `{"content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn"}`}
	adapter := newAdapter(invoker, fakeIdentity{}, Options{})

	_, err := adapter.Chat(context.Background(), models.ChatRequest{
		Model: "m",
		Messages: []models.ChatMessage{
			{Role: "system", Content: "a"},
			{Role: "system", Content: "b"},
			{Role: "user", Content: "first"},
			{Role: "user", Content: "second"},
		},
	})
	require.NoError(t, err)

	var sent anthropicRequest
	require.NoError(t, json.Unmarshal(invoker.input.Body, &sent))
	require.Equal(t, "a\nb", sent.System)
	require.Len(t, sent.Messages, 1)
	require.Len(t, sent.Messages[0].Content, 2)
	require.Nil(t, sent.Temperature)
}

func TestChatRejectsTruncatedReply(t *testing.T) {
	invoker := &fakeInvoker{body: `{"content":[{"type":"text","text":"Hal"}],"stop_reason":"max_tokens","usage":{"output_tokens":1}}`}
	adapter := newAdapter(invoker, fakeIdentity{}, Options{})

	_, err := adapter.Chat(context.Background(), models.ChatRequest{Model: "m", Messages: []models.ChatMessage{{Role: "user", Content: "Hello"}}})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestChatErrors(t *testing.T) {
	adapter := newAdapter(&fakeInvoker{err: errors.New("throttled")}, nil, Options{})
	_, err := adapter.Chat(context.Background(), models.ChatRequest{Model: "m", Messages: []models.ChatMessage{{Role: "user", Content: "x"}}})
	require.ErrorContains(t, err, "throttled")

	_, err = adapter.Chat(context.Background(), models.ChatRequest{Messages: []models.ChatMessage{{Role: "user", Content: "x"}}})
	require.ErrorContains(t, err, "model id")

	_, err = adapter.Chat(context.Background(), models.ChatRequest{Model: "m", Messages: []models.ChatMessage{{Role: "system", Content: "only system"}}})
	require.ErrorContains(t, err, "user message")

	bad := newAdapter(&fakeInvoker{body: "not json"}, nil, Options{})
	_, err = bad.Chat(context.Background(), models.ChatRequest{Model: "m", Messages: []models.ChatMessage{{Role: "user", Content: "x"}}})
	require.ErrorContains(t, err, "decode bedrock response")
}

func TestHealthCheck(t *testing.T) {
	require.NoError(t, newAdapter(&fakeInvoker{}, fakeIdentity{}, Options{}).HealthCheck(context.Background()))
	require.Error(t, newAdapter(&fakeInvoker{}, fakeIdentity{err: errors.New("expired")}, Options{}).HealthCheck(context.Background()))
	require.Error(t, newAdapter(&fakeInvoker{}, nil, Options{}).HealthCheck(context.Background()))
}
