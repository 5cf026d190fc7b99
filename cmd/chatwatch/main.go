package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"chatwatch/internal/config"
	"chatwatch/internal/scenario"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "chatwatch",
		Short:   "chatwatch: scan WhatsApp groups for messages that match your scenarios",
		Long:    "chatwatch drives WhatsApp Web in a real browser, deduplicates group messages across scans, and classifies new ones with an LLM against scenario definitions.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.chatwatch/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(scanCmd())
	root.AddCommand(monitorCmd())
	root.AddCommand(loginCmd())
	root.AddCommand(scenariosCmd())
	root.AddCommand(recentCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("config not found, using defaults", "path", cfgPath)
			return config.Defaults(), nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func configureLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and scenarios directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.General.ScenariosDir, 0o755); err != nil {
				return err
			}
			examplePath := filepath.Join(cfg.General.ScenariosDir, "padel.yaml")
			if err := os.WriteFile(examplePath, []byte(exampleScenario), 0o644); err != nil {
				return err
			}
			logger.Info("initialized",
				"config", cfgPath,
				"scenarios", cfg.General.ScenariosDir,
				"example", examplePath,
			)
			return nil
		},
	}
}

const exampleScenario = `# Example scenario: find padel match requests in group chats.
# Rename the groups to your own and delete this comment.
prompt: |
  You are analyzing messages from a padel players group chat.
  Decide whether the message is a request to find players for a match.
response_schema:
  properties:
    is_request:
      type: boolean
      description: true if the sender is looking for players
    players_count:
      type: integer
      description: how many players are needed
    time:
      type: string
      description: when the match takes place, empty if not stated
    confidence:
      type: string
      enum: [HIGH, MEDIUM, LOW]
      description: how certain you are
    reasoning:
      type: string
      description: one short sentence explaining the verdict
  required: [is_request, confidence]
groups:
  - "Padel Players TLV"
keep_field: is_request
`

func scenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List loaded scenarios and the groups they watch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			configureLogger(cfg.General.LogLevel)

			defs, err := scenario.LoadDirectory(cfg.General.ScenariosDir, logger)
			if err != nil {
				return err
			}
			if len(defs) == 0 {
				return fmt.Errorf("no scenarios found in %s (run 'chatwatch init' to create an example)", cfg.General.ScenariosDir)
			}

			dispatch := scenario.NewDispatch(defs, logger)
			for _, sc := range dispatch.Scenarios() {
				fmt.Printf("%s  (%d fields", sc.Name, len(sc.Schema.Fields))
				if sc.KeepField != "" {
					fmt.Printf(", keep: %s", sc.KeepField)
				}
				fmt.Println(")")
				for _, g := range dispatch.GroupsFor(sc.Name) {
					fmt.Printf("  - %s\n", g)
				}
			}
			return nil
		},
	}
}
