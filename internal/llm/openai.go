package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// openAIBackend serves any OpenAI-compatible chat completion API. DeepSeek
// uses the same wire protocol behind a different base URL.
type openAIBackend struct {
	name      string
	api       *openai.Client
	model     string
	maxTokens int
}

func newOpenAI(name, apiKey, baseURL, model string, maxTokens int) *openAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIBackend{
		name:      name,
		api:       openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (b *openAIBackend) Name() string {
	return b.name
}

func (b *openAIBackend) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := b.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   b.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", b.name)
	}
	return resp.Choices[0].Message.Content, nil
}
