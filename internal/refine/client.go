// Package refine post-processes transcriptions through a local or hosted
// language model.
package refine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrEmptyResponse   = errors.New("language model returned an empty response")
	ErrUnknownProvider = errors.New("unknown llm provider")
)

type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

const (
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "gpt-oss:20b"
)

func ParseProvider(value string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "ollama":
		return ProviderOllama, nil
	case "openai", "openai-compat", "openaicompat":
		return ProviderOpenAI, nil
	default:
		return "", fmt.Errorf("%w %q (use ollama or openai)", ErrUnknownProvider, value)
	}
}

// Client refines text with a prompt template containing InputPlaceholder.
type Client interface {
	Refine(ctx context.Context, text, template string) (string, error)
	Available(ctx context.Context) bool
}

type Options struct {
	Provider   Provider
	URL        string
	Model      string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func New(opts Options) (Client, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = DefaultURL
	}
	opts.URL = strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}

	switch opts.Provider {
	case ProviderOllama, "":
		return newOllamaClient(opts), nil
	case ProviderOpenAI:
		return newOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, opts.Provider)
	}
}

const availabilityTimeout = 3 * time.Second

func finish(refined string) (string, error) {
	refined = strings.TrimSpace(refined)
	if refined == "" {
		return "", ErrEmptyResponse
	}
	return refined, nil
}
