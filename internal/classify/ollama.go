// Package classify holds the LLM classifier clients: one per scenario,
// built lazily by the registry and shared read-only once initialized. Both
// backends ask the model for the scenario's schema as structured JSON and
// validate whatever comes back against it.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chatwatch/internal/domain"
	"chatwatch/internal/scenario"
)

const (
	ollamaDefaultBase  = "http://localhost:11434"
	defaultHTTPTimeout = 120 * time.Second
)

// Ollama classifies messages through Ollama's native /api/chat endpoint,
// using its structured-output `format` parameter to pin the response to the
// scenario schema.
type Ollama struct {
	apiBase string
	model   string
	sc      *domain.Scenario
	system  string
	format  map[string]any
	client  *http.Client
	retry   retryPolicy
}

type OllamaConfig struct {
	APIBase    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

func NewOllama(cfg OllamaConfig, sc *domain.Scenario) *Ollama {
	if cfg.APIBase == "" {
		cfg.APIBase = ollamaDefaultBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	return &Ollama{
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		sc:      sc,
		system:  sc.Prompt + "\n\n" + scenario.Instructions(&sc.Schema),
		format:  scenario.JSONSchema(&sc.Schema),
		client:  &http.Client{Timeout: cfg.Timeout},
		retry:   newRetryPolicy(cfg.MaxRetries, cfg.Logger),
	}
}

func (o *Ollama) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.apiBase+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", o.apiBase, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// ollamaRequest matches the Ollama /api/chat request body.
type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []ollamaMsg    `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   map[string]any `json:"format,omitempty"`
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaResponse struct {
	Message    ollamaMsg `json:"message"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason"`
}

func (o *Ollama) Classify(ctx context.Context, text string) (domain.Result, error) {
	body := ollamaRequest{
		Model: o.model,
		Messages: []ollamaMsg{
			{Role: "system", Content: o.system},
			{Role: "user", Content: text},
		},
		Stream: false,
		Format: o.format,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := o.retry.do(ctx, o.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", o.apiBase+"/api/chat", bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned %d", resp.StatusCode)
	}

	var or ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	raw, err := decodeObject(or.Message.Content)
	if err != nil {
		return nil, err
	}
	return scenario.BuildResult(&o.sc.Schema, raw)
}
