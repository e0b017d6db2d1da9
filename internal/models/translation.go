package models

import "fmt"

// TranslationRequest asks a language model to translate Text into Target.
// Source is advisory; an empty Source lets the model detect it.
type TranslationRequest struct {
	Model  string
	Text   string
	Source string
	Target string
}

// ChatRequest renders the translation as a two-message chat exchange.
func (r TranslationRequest) ChatRequest() ChatRequest {
	from := "the source language"
	if r.Source != "" {
		from = r.Source
	}
	system := fmt.Sprintf("You translate text from %s to %s. Respond with only the %s translation, nothing else. Keep numbers, names and symbols unchanged.", from, r.Target, r.Target)
	temperature := float32(0.2)
	return ChatRequest{
		Model: r.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: r.Text},
		},
		Temperature: &temperature,
	}
}
