package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type ollamaClient struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

func newOllamaClient(opts Options) *ollamaClient {
	return &ollamaClient{baseURL: opts.URL, model: opts.Model, http: opts.HTTPClient, logger: opts.Logger}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *ollamaClient) Refine(ctx context.Context, text, template string) (string, error) {
	body, err := json.Marshal(ollamaRequest{Model: c.model, Prompt: Render(template, text)})
	if err != nil {
		return "", err
	}

	url := c.baseURL + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending refinement request", zap.String("provider", string(ProviderOllama)), zap.String("url", url), zap.String("model", c.model))
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request to ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama returned status %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return finish(out.Response)
}

func (c *ollamaClient) Available(ctx context.Context) bool {
	return reachable(ctx, c.http, c.baseURL+"/api/tags")
}

func reachable(ctx context.Context, client *http.Client, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
