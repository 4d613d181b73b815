package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/raphaelschols/ai-intel-hub/internal/cli"
	"github.com/raphaelschols/ai-intel-hub/internal/db"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
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

	pool, err := connectPool(cfg, *timeout)
	if err != nil {
		logger.Error().Err(err).Msg("stats failed to connect to database")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stats, err := db.NewStore(pool).Stats(ctx, cfg.ActiveWindow)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query stats: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := [][]string{
		{"total_items", fmt.Sprintf("%d", stats.TotalItems)},
		{"active_items", fmt.Sprintf("%d", stats.ActiveItems)},
		{"total_runs", fmt.Sprintf("%d", stats.TotalRuns)},
		{"alerts_sent", fmt.Sprintf("%d", stats.AlertsSent)},
		{"alerts_failed", fmt.Sprintf("%d", stats.AlertsFailed)},
	}
	if err := writeTable([]string{"metric", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render stats table: %v\n", err)
		return 1
	}

	if len(stats.ItemsByCategory) > 0 {
		fmt.Println()
		categories := make([]string, 0, len(stats.ItemsByCategory))
		for category := range stats.ItemsByCategory {
			categories = append(categories, category)
		}
		sort.Strings(categories)

		categoryRows := make([][]string, 0, len(categories))
		for _, category := range categories {
			categoryRows = append(categoryRows, []string{
				category,
				fmt.Sprintf("%d", stats.ItemsByCategory[category]),
			})
		}
		if err := writeTable([]string{"category", "items"}, categoryRows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render category table: %v\n", err)
			return 1
		}
	}

	return 0
}
