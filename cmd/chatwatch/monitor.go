package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chatwatch/internal/report"
)

func monitorCmd() *cobra.Command {
	var (
		scrolls      int
		interval     int
		scenarioName string
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch groups live and classify only new messages",
		Long:  "Seeds the seen-set from current history without classifying it, then polls each group on an interval and classifies only messages that appear after startup. Press Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(scrolls, interval, scenarioName)
		},
	}

	cmd.Flags().IntVar(&scrolls, "scrolls", 0, "history pages to seed the seen-set with (default from config)")
	cmd.Flags().IntVar(&interval, "interval", 0, "seconds between polls (default from config)")
	cmd.Flags().StringVar(&scenarioName, "scenario", "", "watch only the groups of this scenario")

	return cmd
}

func runMonitor(scrolls, interval int, scenarioName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Matches print the moment they surface; the archive and notifier
	// sinks are added inside buildStack from config.
	console := report.NewConsole(os.Stdout, true, nil)

	st, cleanup, err := buildStack(ctx, console)
	if err != nil {
		return err
	}
	defer cleanup()

	// The dispatch only exists after the stack is built; install it so
	// fields print in schema order.
	console.SetResolver(st.dispatch)

	if scrolls <= 0 {
		scrolls = st.cfg.Scan.DefaultScrolls
	}
	if interval <= 0 {
		interval = st.cfg.Scan.IntervalSeconds
	}

	groups := st.dispatch.Groups()
	if scenarioName != "" {
		groups = st.dispatch.GroupsFor(scenarioName)
		if len(groups) == 0 {
			return fmt.Errorf("unknown scenario %q", scenarioName)
		}
	}

	console.Banner("chatwatch live monitor")
	logger.Info("monitoring started",
		"groups", len(groups),
		"interval_s", interval,
		"seed_scrolls", scrolls,
	)

	insights, err := st.runner.Monitor(ctx, groups, scrolls, time.Duration(interval)*time.Second)
	if err != nil && ctx.Err() == nil {
		return err
	}

	fmt.Println()
	console.PrintSummary(insights)
	st.counters.LogSummary(logger)
	return nil
}
