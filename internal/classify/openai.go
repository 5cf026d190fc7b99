package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chatwatch/internal/domain"
	"chatwatch/internal/scenario"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI classifies messages through any OpenAI-compatible chat endpoint.
// Pointing APIBase at Ollama's /v1 gives local-model classification over the
// same wire protocol.
type OpenAI struct {
	client *openai.Client
	model  string
	sc     *domain.Scenario
	system string
	retry  retryPolicy
}

type OpenAIConfig struct {
	APIBase    string // e.g. "http://localhost:11434/v1"
	APIKey     string // "not-needed" works for Ollama
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig, sc *domain.Scenario) *OpenAI {
	if cfg.APIKey == "" {
		cfg.APIKey = "not-needed"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = cfg.APIBase
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		sc:     sc,
		system: sc.Prompt + "\n\n" + scenario.Instructions(&sc.Schema),
		retry:  newRetryPolicy(cfg.MaxRetries, cfg.Logger),
	}
}

func (c *OpenAI) Healthy(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("endpoint not reachable: %w", err)
	}
	return nil
}

// transientCompletionError reports whether a completion failure is worth a
// retry: rate limits and server errors are, schema and auth errors are not,
// and anything without an API status is a network-level failure.
func transientCompletionError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}
	return true
}

func (c *OpenAI) Classify(ctx context.Context, text string) (domain.Result, error) {
	var resp openai.ChatCompletionResponse
	err := c.retry.run(ctx, func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: c.system},
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		return callErr
	}, transientCompletionError)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion")
	}

	raw, err := decodeObject(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return scenario.BuildResult(&c.sc.Schema, raw)
}
