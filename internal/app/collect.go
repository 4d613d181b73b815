package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/raphaelschols/ai-intel-hub/internal/cli"
	"github.com/raphaelschols/ai-intel-hub/internal/feed"
	"github.com/raphaelschols/ai-intel-hub/internal/globaltime"
)

func runCollect(args []string) int {
	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Cycle timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	skipNotify := fs.Bool("skip-notify", false, "Run the cycle without evaluating notifications")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "collect does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, logger, err := loadConfigAndLogger(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	pool, err := connectPool(cfg, 30*time.Second)
	if err != nil {
		logger.Error().Err(err).Msg("collect failed to connect to database")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	service, err := buildService(cfg, pool, logger)
	if err != nil {
		logger.Error().Err(err).Msg("collect failed to build service")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, ranked, err := service.RunCycle(ctx, globaltime.UTC())
	if err != nil {
		logger.Error().Err(err).Msg("collection cycle failed")
		fmt.Fprintf(os.Stderr, "Collection cycle failed: %v\n", err)
		printReport(report, outputFormat)
		return 1
	}

	var intents []feed.NotificationIntent
	if !*skipNotify {
		intents, err = service.EvaluateAndDispatch(ctx, ranked, globaltime.UTC())
		if err != nil {
			logger.Error().Err(err).Msg("trigger evaluation failed")
			fmt.Fprintf(os.Stderr, "Trigger evaluation failed: %v\n", err)
			printReport(report, outputFormat)
			return 1
		}
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{
			"report":  report,
			"intents": len(intents),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	printReport(report, outputFormat)
	fmt.Printf("Notifications emitted: %d\n", len(intents))
	return 0
}

func printReport(report feed.CollectionReport, format string) {
	if format == outputFormatJSON {
		_ = printJSON(report)
		return
	}

	rows := [][]string{
		{"fetched", fmt.Sprintf("%d", report.Fetched)},
		{"normalized", fmt.Sprintf("%d", report.Normalized)},
		{"skipped", fmt.Sprintf("%d", report.Skipped)},
		{"duplicates", fmt.Sprintf("%d", report.Duplicates)},
		{"inserted", fmt.Sprintf("%d", report.Inserted)},
		{"updated", fmt.Sprintf("%d", report.Updated)},
		{"upsert_failures", fmt.Sprintf("%d", report.UpsertFailures)},
		{"source_failures", fmt.Sprintf("%d", report.FailureCount())},
	}
	fmt.Printf("Batch %s (failed=%v)\n", report.BatchID, report.Failed)
	if err := writeTable([]string{"counter", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render report table: %v\n", err)
	}
	for source, reason := range report.SourceFailures {
		fmt.Printf("  source %s failed: %s\n", source, reason)
	}
}
