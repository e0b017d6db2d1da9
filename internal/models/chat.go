package models

type ChatMessage struct {
	Role    string
	Content string
}

type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature *float32
	MaxTokens   *int32
}

type Usage struct {
	PromptTokens     int32
	CompletionTokens int32
	TotalTokens      int32
}

// ChatResponse keeps only the first choice; translation never asks for more.
type ChatResponse struct {
	Text  string
	Usage Usage
}
