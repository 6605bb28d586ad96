package formgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"call-review-service/internal/observability/logging"
	"call-review-service/internal/schema"
	"call-review-service/internal/service/transcript"
)

// ErrNoChoices is returned when the model answers without any completion.
var ErrNoChoices = errors.New("model returned no choices")

// OpenAIConfig holds chat completion settings.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string // empty uses the public API
	Temperature float32
}

// DefaultOpenAIConfig returns the completion settings without credentials.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:       openai.GPT4oMini,
		Temperature: 0.2,
	}
}

// OpenAI implements Generator with the chat completion API in JSON mode.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger zerolog.Logger
}

// NewOpenAI creates an OpenAI generator.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is not set")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logging.WithProvider("formgen", "openai"),
	}, nil
}

// Name identifies the provider.
func (g *OpenAI) Name() string { return "openai" }

// Generate asks the model to fill the schema fields from conv.
func (g *OpenAI) Generate(ctx context.Context, conv transcript.Conversation, s *schema.Schema) (string, error) {
	system, user := BuildPrompt(conv, s)

	req := openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		Temperature: g.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	g.logger.Debug().
		Str("model", g.cfg.Model).
		Int("promptTokens", resp.Usage.PromptTokens).
		Int("completionTokens", resp.Usage.CompletionTokens).
		Msg("Form generated")

	return resp.Choices[0].Message.Content, nil
}
