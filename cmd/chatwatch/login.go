package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chatwatch/internal/source"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Open a visible browser to scan the WhatsApp Web QR code",
		Long:  "Opens a visible Chrome window on WhatsApp Web so you can scan the QR code once. The session is saved to the profile directory and reused by scan and monitor, headless included.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			configureLogger(cfg.General.LogLevel)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// QR scanning needs a window regardless of the configured mode.
			cfg.Source.Headless = false

			src := source.NewWhatsApp(cfg.Source, logger)
			if err := src.Start(ctx); err != nil {
				return err
			}
			defer src.Close()

			logger.Info("login successful, session saved", "dir", cfg.Source.SessionDir)
			return nil
		},
	}
}
