package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for chatwatch.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Source     SourceConfig     `json:"source"`
	Classifier ClassifierConfig `json:"classifier"`
	Scan       ScanConfig       `json:"scan"`
	Notify     NotifyConfig     `json:"notify"`
	Archive    ArchiveConfig    `json:"archive"`
}

type GeneralConfig struct {
	ScenariosDir string `json:"scenariosDir"`
	LogLevel     string `json:"logLevel"`
}

// SourceConfig configures the WhatsApp Web browser session.
type SourceConfig struct {
	SessionDir        string `json:"sessionDir"` // Chrome profile dir holding the login session
	Headless          bool   `json:"headless"`
	NavTimeoutSeconds int    `json:"navTimeoutSeconds"`
	LoginWaitSeconds  int    `json:"loginWaitSeconds"` // max wait for QR scan
}

// ClassifierConfig selects and configures the LLM backend.
type ClassifierConfig struct {
	Backend        string `json:"backend"` // "ollama" | "openai"
	APIBase        string `json:"apiBase"`
	APIKey         string `json:"apiKey,omitempty"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	MaxRetries     int    `json:"maxRetries"` // retries after the first attempt
}

type ScanConfig struct {
	DefaultScrolls  int `json:"defaultScrolls"`
	IntervalSeconds int `json:"intervalSeconds"`
}

// NotifyConfig configures the optional Telegram notifier.
type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled       bool   `json:"enabled"`
	Token         string `json:"token,omitempty"`
	ChatID        int64  `json:"chatId,omitempty"`
	MinConfidence string `json:"minConfidence"` // HIGH | MEDIUM | LOW
}

// ArchiveConfig configures the optional SQLite insight archive.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

// DefaultConfigDir returns the default config directory (~/.chatwatch).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatwatch"
	}
	return filepath.Join(home, ".chatwatch")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.ScenariosDir = ExpandPath(cfg.General.ScenariosDir)
	cfg.Source.SessionDir = ExpandPath(cfg.Source.SessionDir)
	cfg.Archive.DBPath = ExpandPath(cfg.Archive.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.Classifier.Backend {
	case "ollama", "openai":
	default:
		errs = append(errs, "classifier.backend must be one of: ollama, openai")
	}
	if cfg.Classifier.Model == "" {
		errs = append(errs, "classifier.model must be set")
	}
	if cfg.Classifier.TimeoutSeconds < 1 {
		errs = append(errs, "classifier.timeoutSeconds must be >= 1")
	}
	if cfg.Classifier.MaxRetries < 0 {
		errs = append(errs, "classifier.maxRetries must be >= 0")
	}

	if cfg.Scan.DefaultScrolls < 0 {
		errs = append(errs, "scan.defaultScrolls must be >= 0")
	}
	if cfg.Scan.IntervalSeconds < 5 {
		errs = append(errs, "scan.intervalSeconds must be >= 5")
	}

	if cfg.Source.NavTimeoutSeconds < 1 {
		errs = append(errs, "source.navTimeoutSeconds must be >= 1")
	}
	if cfg.Source.LoginWaitSeconds < 1 {
		errs = append(errs, "source.loginWaitSeconds must be >= 1")
	}

	switch cfg.Notify.Telegram.MinConfidence {
	case "", "HIGH", "MEDIUM", "LOW":
	default:
		errs = append(errs, "notify.telegram.minConfidence must be one of: HIGH, MEDIUM, LOW")
	}
	if cfg.Notify.Telegram.Enabled && cfg.Notify.Telegram.Token == "" {
		errs = append(errs, "notify.telegram.token is required when telegram is enabled")
	}
	if cfg.Archive.Enabled && cfg.Archive.DBPath == "" {
		errs = append(errs, "archive.dbPath is required when archive is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
