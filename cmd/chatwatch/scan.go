package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chatwatch/internal/archive"
	"chatwatch/internal/classify"
	"chatwatch/internal/config"
	"chatwatch/internal/dedup"
	"chatwatch/internal/domain"
	"chatwatch/internal/metrics"
	"chatwatch/internal/monitor"
	"chatwatch/internal/notify"
	"chatwatch/internal/report"
	"chatwatch/internal/scenario"
	"chatwatch/internal/source"
)

func scanCmd() *cobra.Command {
	var (
		scrolls int
		output  string
		groups  []string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan group history once and classify every message",
		Long:  "Opens each configured group, scrolls back through history, classifies the messages against the matching scenario, and prints the results.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(scrolls, output, groups, limit)
		},
	}

	cmd.Flags().IntVar(&scrolls, "scrolls", 0, "history pages to scroll back per group (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "pretty", "output format: pretty | json")
	cmd.Flags().StringSliceVarP(&groups, "groups", "g", nil, "restrict the scan to these groups (default: all configured)")
	cmd.Flags().IntVar(&limit, "limit", 0, "classify at most N messages per group (0 = no limit)")

	return cmd
}

// stack holds the wired pipeline shared by scan and monitor.
type stack struct {
	cfg      *config.Config
	dispatch *scenario.Dispatch
	src      *source.WhatsApp
	runner   *monitor.Runner
	agg      *monitor.Aggregator
	counters *metrics.Session
}

// buildStack wires config, scenarios, browser, classifier, and sinks. The
// returned cleanup closes the browser and any open stores; callers must run
// it even on error paths after a successful build.
func buildStack(ctx context.Context, liveSink domain.InsightSink) (*stack, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	configureLogger(cfg.General.LogLevel)

	defs, err := scenario.LoadDirectory(cfg.General.ScenariosDir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("load scenarios: %w", err)
	}
	if len(defs) == 0 {
		return nil, nil, fmt.Errorf("no scenarios in %s: run 'chatwatch init' and edit the example", cfg.General.ScenariosDir)
	}
	dispatch := scenario.NewDispatch(defs, logger)
	if len(dispatch.Groups()) == 0 {
		return nil, nil, fmt.Errorf("no groups configured: every scenario needs a non-empty groups list")
	}

	counters := metrics.NewSession()
	registry := classify.NewRegistry(cfg.Classifier, logger)

	// Fail fast when the classifier backend is unreachable, before the
	// browser session is spent.
	probe, err := registry.For(dispatch.Scenarios()[0])
	if err != nil {
		return nil, nil, err
	}
	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = probe.Healthy(healthCtx)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("classifier backend %s at %s is not reachable: %w",
			cfg.Classifier.Backend, cfg.Classifier.APIBase, err)
	}

	var sinks []domain.InsightSink
	var closers []func()
	if liveSink != nil {
		sinks = append(sinks, liveSink)
	}
	if cfg.Archive.Enabled {
		store, err := archive.NewSQLiteStore(cfg.Archive.DBPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open archive: %w", err)
		}
		sinks = append(sinks, store)
		closers = append(closers, func() { store.Close() })
	}
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Notify.Telegram, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("telegram notifier: %w", err)
		}
		sinks = append(sinks, tg)
	}

	src := source.NewWhatsApp(cfg.Source, logger)
	if err := src.Start(ctx); err != nil {
		for _, c := range closers {
			c()
		}
		return nil, nil, fmt.Errorf("start browser session: %w", err)
	}
	closers = append(closers, func() { src.Close() })

	tracker := dedup.NewTracker(src, logger)
	agg := monitor.NewAggregator(registry, counters, logger)
	runner := monitor.NewRunner(tracker, dispatch, agg, counters, sinks, logger)

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return &stack{
		cfg:      cfg,
		dispatch: dispatch,
		src:      src,
		runner:   runner,
		agg:      agg,
		counters: counters,
	}, cleanup, nil
}

func runScan(scrolls int, output string, groups []string, limit int) error {
	switch output {
	case "pretty", "json":
	default:
		return fmt.Errorf("unknown output format %q: use pretty or json", output)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := buildStack(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	if scrolls <= 0 {
		scrolls = st.cfg.Scan.DefaultScrolls
	}
	targets, err := resolveGroups(st.dispatch, groups)
	if err != nil {
		return err
	}

	console := report.NewConsole(os.Stdout, output == "pretty", st.dispatch)
	if output == "pretty" {
		console.Banner("chatwatch scan")
		attachProgress(st.agg)
	}

	insights, err := st.runner.ScanHistory(ctx, targets, scrolls, limit)
	if err != nil && ctx.Err() == nil {
		return err
	}

	switch output {
	case "json":
		if err := report.WriteJSON(os.Stdout, insights); err != nil {
			return err
		}
	case "pretty":
		for _, ins := range insights {
			console.PrintInsight(ins)
		}
		console.PrintSummary(insights)
	}

	st.counters.LogSummary(logger)
	return nil
}

// attachProgress hooks a terminal progress bar onto the classification loop.
func attachProgress(agg *monitor.Aggregator) {
	agg.OnProgress = report.NewBatchProgress("classifying", os.Stderr).Step
}

// resolveGroups narrows the configured groups to the requested subset.
// Requested groups no scenario watches are skipped with a warning and the
// scan continues over the rest; only an empty remainder is a configuration
// error.
func resolveGroups(dispatch *scenario.Dispatch, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return dispatch.Groups(), nil
	}

	var targets []string
	for _, g := range requested {
		if _, ok := dispatch.ScenarioFor(g); !ok {
			logger.Warn("no scenario watches group, skipping", "group", g)
			continue
		}
		targets = append(targets, g)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("none of the requested groups are watched by any scenario: %s", strings.Join(requested, ", "))
	}
	return targets, nil
}
