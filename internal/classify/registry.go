package classify

import (
	"fmt"
	"log/slog"
	"time"

	"chatwatch/internal/config"
	"chatwatch/internal/domain"
)

// Registry hands out one classifier per scenario, built on first use and
// reused afterwards. It is owned by the orchestrating component and passed
// down explicitly; there is no ambient global client.
type Registry struct {
	cfg     config.ClassifierConfig
	logger  *slog.Logger
	clients map[string]domain.Classifier
}

func NewRegistry(cfg config.ClassifierConfig, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]domain.Classifier),
	}
}

// For returns the classifier for a scenario, building it lazily.
func (r *Registry) For(sc *domain.Scenario) (domain.Classifier, error) {
	if c, ok := r.clients[sc.Name]; ok {
		return c, nil
	}

	timeout := time.Duration(r.cfg.TimeoutSeconds) * time.Second
	var c domain.Classifier
	switch r.cfg.Backend {
	case "ollama":
		c = NewOllama(OllamaConfig{
			APIBase:    r.cfg.APIBase,
			Model:      r.cfg.Model,
			Timeout:    timeout,
			MaxRetries: r.cfg.MaxRetries,
			Logger:     r.logger,
		}, sc)
	case "openai":
		c = NewOpenAI(OpenAIConfig{
			APIBase:    r.cfg.APIBase,
			APIKey:     r.cfg.APIKey,
			Model:      r.cfg.Model,
			Timeout:    timeout,
			MaxRetries: r.cfg.MaxRetries,
			Logger:     r.logger,
		}, sc)
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", r.cfg.Backend)
	}

	r.logger.Debug("classifier initialized", "scenario", sc.Name, "backend", r.cfg.Backend)
	r.clients[sc.Name] = c
	return c, nil
}
