package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chatwatch/internal/archive"
	"chatwatch/internal/report"
	"chatwatch/internal/scenario"
)

func recentCmd() *cobra.Command {
	var (
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the latest insights from the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			configureLogger(cfg.General.LogLevel)

			if !cfg.Archive.Enabled {
				return fmt.Errorf("archive is disabled: set archive.enabled in %s", resolveConfigPath())
			}

			store, err := archive.NewSQLiteStore(cfg.Archive.DBPath, logger)
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			defer store.Close()

			insights, err := store.Recent(context.Background(), limit)
			if err != nil {
				return err
			}

			if output == "json" {
				return report.WriteJSON(os.Stdout, insights)
			}

			defs, _ := scenario.LoadDirectory(cfg.General.ScenariosDir, logger)
			console := report.NewConsole(os.Stdout, true, scenario.NewDispatch(defs, logger))
			for _, ins := range insights {
				console.PrintInsight(ins)
			}
			console.PrintSummary(insights)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of insights to show")
	cmd.Flags().StringVarP(&output, "output", "o", "pretty", "output format: pretty | json")

	return cmd
}
