package translator

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/MimeLyc/stremio-sub-translator/internal/llm"
)

// backend is the minimal completion surface a provider must offer.
type backend interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// openAIBackend talks to the OpenAI API through the official-style SDK.
type openAIBackend struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func newOpenAIBackend(cfg Config) *openAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIURL != "" {
		clientCfg.BaseURL = cfg.APIURL
	}
	return &openAIBackend{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}
}

func (b *openAIBackend) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	resp, err := b.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       b.model,
			MaxTokens:   b.maxTokens,
			Temperature: b.temperature,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userMessage,
				},
			},
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("provider returned an empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// compatBackend serves any OpenAI-compatible endpoint, which is how the
// Gemini provider is reached (its compatibility endpoint).
type compatBackend struct {
	client *llm.Client
}

func newCompatBackend(cfg Config) (*compatBackend, error) {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = geminiCompatURL
	}
	client, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.APIKey,
		APIURL:      apiURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     int(cfg.Timeout.Seconds()),
	})
	if err != nil {
		return nil, err
	}
	return &compatBackend{client: client}, nil
}

func (b *compatBackend) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return b.client.SimpleChat(ctx, userMessage, systemPrompt)
}

// isRetryable classifies transport errors worth another attempt:
// rate limits, 5xx responses and plain network failures. Context
// cancellation is never retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}

	var llmAPIErr *llm.APIError
	if errors.As(err, &llmAPIErr) {
		return false
	}

	// Anything else is assumed to be a network-level failure.
	return true
}
