package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/raphaelschols/ai-intel-hub/internal/cli"
	"github.com/raphaelschols/ai-intel-hub/internal/config"
	"github.com/raphaelschols/ai-intel-hub/internal/db"
	"github.com/raphaelschols/ai-intel-hub/internal/logging"
	"github.com/raphaelschols/ai-intel-hub/internal/notify"
	"github.com/raphaelschols/ai-intel-hub/internal/pipeline"
	"github.com/raphaelschols/ai-intel-hub/internal/retry"
	"github.com/raphaelschols/ai-intel-hub/internal/sources"
	sourceschema "github.com/raphaelschols/ai-intel-hub/schema"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func loadConfigAndLogger(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func connectPool(cfg *config.Config, timeout time.Duration) (*db.Pool, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

// buildService wires the full cycle: source adapters from the validated
// registry, the store, the dispatcher, and the pipeline options derived
// from config.
func buildService(cfg *config.Config, pool *db.Pool, logger zerolog.Logger) (*pipeline.Service, error) {
	sourceConfigs, err := sourceschema.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources file %s: %w", cfg.SourcesFile, err)
	}

	adapters, err := sources.Build(sourceConfigs, sources.Options{
		HTTPClient: nil,
		ItemLimit:  cfg.FeedItemLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("build source adapters: %w", err)
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no enabled sources in %s", cfg.SourcesFile)
	}

	vocabulary, err := pipeline.LoadVocabulary(cfg.VocabularyFile)
	if err != nil {
		return nil, err
	}

	credibility := make(map[string]float64, len(sourceConfigs))
	for _, src := range sourceConfigs {
		credibility[src.Name] = src.CredibilityWeight
	}

	var dispatcher pipeline.Dispatcher
	if strings.TrimSpace(cfg.TelegramBotToken) != "" && cfg.TelegramChatID != 0 {
		telegram, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize telegram dispatcher: %w", err)
		}
		dispatcher = telegram
	} else {
		logger.Warn().Msg("telegram not configured, notifications are log-only")
		dispatcher = notify.NewLogDispatcher(logger)
	}

	serviceCfg := pipeline.ServiceConfig{
		Normalize: pipeline.NormalizeOptions{
			Vocabulary:          vocabulary,
			Languages:           cfg.LanguageList(),
			SummaryMaxRunes:     cfg.SummaryMaxRunes,
			RequireKeywordKinds: []string{"rss"},
		},
		Dedupe: pipeline.DedupeOptions{
			SimilarityThreshold: cfg.DedupSimilarity,
			Window:              cfg.DedupWindow,
		},
		Rank: pipeline.RankOptions{
			Weights: pipeline.Weights{
				Recency:    cfg.WeightRecency,
				Citation:   cfg.WeightCitation,
				Keyword:    cfg.WeightKeyword,
				Source:     cfg.WeightSource,
				Novelty:    cfg.WeightNovelty,
				Engagement: cfg.WeightEngagement,
			},
			RecencyHalfLife:      cfg.RecencyHalfLife,
			KeywordCap:           cfg.KeywordCap,
			NoveltySaturation:    cfg.NoveltySaturation,
			SourceCredibility:    credibility,
			BreakthroughPatterns: cfg.BreakthroughPatternList(),
			BreakthroughBonus:    cfg.BreakthroughBonus,
			ScoreCeiling:         cfg.ScoreCeiling,
		},
		Triggers: pipeline.TriggerConfig{
			BreakingThreshold: cfg.BreakingThreshold,
			DigestHourUTC:     cfg.DigestHourUTC,
			DigestTopK:        cfg.DigestTopK,
			WeeklyWeekday:     cfg.WeeklyWeekday,
			WeeklyHourUTC:     cfg.WeeklyHourUTC,
		},
		ActiveWindow:  cfg.ActiveWindow,
		SourceTimeout: cfg.SourceTimeout,
		Retry: retry.Policy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    10 * time.Second,
		},
	}

	store := db.NewStore(pool)
	return pipeline.NewService(adapters, store, dispatcher, serviceCfg, logger), nil
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}
