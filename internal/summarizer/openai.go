package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrCompletion wraps every failure of the completion call itself.
var ErrCompletion = errors.New("summarizer: completion service failure")

// Completer sends one prompt and returns the model's raw text reply.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// OpenAIConfig configures the chat completion client.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAICompleter calls the OpenAI chat completions API.
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}

	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %w", ErrCompletion, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai: empty response", ErrCompletion)
	}

	return resp.Choices[0].Message.Content, nil
}
