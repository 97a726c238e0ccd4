package refine

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// openAIClient talks to any server exposing the OpenAI chat completions API
// under {url}/v1 (LM Studio, llama.cpp server, vLLM, OpenAI itself).
type openAIClient struct {
	client  *openai.Client
	baseURL string
	model   string
	logger  *zap.Logger
}

func newOpenAIClient(opts Options) *openAIClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = opts.URL + "/v1"
	cfg.HTTPClient = opts.HTTPClient
	return &openAIClient{
		client:  openai.NewClientWithConfig(cfg),
		baseURL: cfg.BaseURL,
		model:   opts.Model,
		logger:  opts.Logger,
	}
}

func (c *openAIClient) Refine(ctx context.Context, text, template string) (string, error) {
	c.logger.Debug("sending refinement request", zap.String("provider", string(ProviderOpenAI)), zap.String("url", c.baseURL), zap.String("model", c.model))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: Render(template, text)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai-compatible chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return finish(resp.Choices[0].Message.Content)
}

func (c *openAIClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()

	_, err := c.client.ListModels(ctx)
	if err != nil {
		c.logger.Debug("openai-compatible endpoint unavailable", zap.Error(err))
		return false
	}
	return true
}
