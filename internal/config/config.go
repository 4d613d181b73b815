package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int    `envconfig:"DB_MAX_CONNS" default:"8"`

	SourcesFile    string `envconfig:"SOURCES_FILE" default:"sources.json"`
	VocabularyFile string `envconfig:"VOCABULARY_FILE" default:""`
	Languages      string `envconfig:"LANGUAGES" default:"en"`

	WeightRecency    float64 `envconfig:"WEIGHT_RECENCY" default:"0.3"`
	WeightCitation   float64 `envconfig:"WEIGHT_CITATION" default:"0.2"`
	WeightKeyword    float64 `envconfig:"WEIGHT_KEYWORD" default:"0.2"`
	WeightSource     float64 `envconfig:"WEIGHT_SOURCE" default:"0.2"`
	WeightNovelty    float64 `envconfig:"WEIGHT_NOVELTY" default:"0.1"`
	WeightEngagement float64 `envconfig:"WEIGHT_ENGAGEMENT" default:"0"`

	RecencyHalfLife      time.Duration `envconfig:"RECENCY_HALF_LIFE" default:"48h"`
	KeywordCap           int           `envconfig:"KEYWORD_CAP" default:"5"`
	NoveltySaturation    int           `envconfig:"NOVELTY_SATURATION" default:"3"`
	BreakthroughBonus    float64       `envconfig:"BREAKTHROUGH_BONUS" default:"1.15"`
	BreakthroughPatterns string        `envconfig:"BREAKTHROUGH_PATTERNS" default:"breakthrough,state-of-the-art,state of the art"`
	ScoreCeiling         float64       `envconfig:"SCORE_CEILING" default:"1.0"`

	BreakingThreshold float64 `envconfig:"BREAKING_THRESHOLD" default:"0.75"`
	DigestHourUTC     int     `envconfig:"DIGEST_HOUR_UTC" default:"9"`
	DigestTopK        int     `envconfig:"DIGEST_TOP_K" default:"10"`
	WeeklyWeekday     int     `envconfig:"WEEKLY_WEEKDAY" default:"1"`
	WeeklyHourUTC     int     `envconfig:"WEEKLY_HOUR_UTC" default:"9"`

	DedupSimilarity float64       `envconfig:"DEDUP_SIMILARITY" default:"0.85"`
	DedupWindow     time.Duration `envconfig:"DEDUP_WINDOW" default:"24h"`
	ActiveWindow    time.Duration `envconfig:"ACTIVE_WINDOW" default:"168h"`

	SourceTimeout    time.Duration `envconfig:"SOURCE_TIMEOUT" default:"30s"`
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"500ms"`

	FeedItemLimit   int `envconfig:"FEED_ITEM_LIMIT" default:"5"`
	SummaryMaxRunes int `envconfig:"SUMMARY_MAX_RUNES" default:"300"`

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramChatID   int64  `envconfig:"TELEGRAM_CHAT_ID" default:"0"`

	LoopInterval time.Duration `envconfig:"LOOP_INTERVAL" default:"6h"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if strings.TrimSpace(c.SourcesFile) == "" {
		return fmt.Errorf("SOURCES_FILE is required")
	}

	weightSum := c.WeightRecency + c.WeightCitation + c.WeightKeyword +
		c.WeightSource + c.WeightNovelty + c.WeightEngagement
	if weightSum <= 0 {
		return fmt.Errorf("ranking weights must sum to a positive total, got %v", weightSum)
	}
	for name, w := range map[string]float64{
		"WEIGHT_RECENCY":    c.WeightRecency,
		"WEIGHT_CITATION":   c.WeightCitation,
		"WEIGHT_KEYWORD":    c.WeightKeyword,
		"WEIGHT_SOURCE":     c.WeightSource,
		"WEIGHT_NOVELTY":    c.WeightNovelty,
		"WEIGHT_ENGAGEMENT": c.WeightEngagement,
	} {
		if w < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	if c.BreakingThreshold < 0 || c.BreakingThreshold > 1 {
		return fmt.Errorf("BREAKING_THRESHOLD must be in [0, 1]")
	}
	if c.DedupSimilarity <= 0 || c.DedupSimilarity > 1 {
		return fmt.Errorf("DEDUP_SIMILARITY must be in (0, 1]")
	}
	if c.DedupWindow <= 0 {
		return fmt.Errorf("DEDUP_WINDOW must be positive")
	}
	if c.RecencyHalfLife <= 0 {
		return fmt.Errorf("RECENCY_HALF_LIFE must be positive")
	}
	if c.KeywordCap < 1 {
		return fmt.Errorf("KEYWORD_CAP must be >= 1")
	}
	if c.NoveltySaturation < 1 {
		return fmt.Errorf("NOVELTY_SATURATION must be >= 1")
	}
	if c.BreakthroughBonus < 1 {
		return fmt.Errorf("BREAKTHROUGH_BONUS must be >= 1")
	}
	if c.ScoreCeiling <= 0 {
		return fmt.Errorf("SCORE_CEILING must be positive")
	}
	if c.DigestHourUTC < 0 || c.DigestHourUTC > 23 {
		return fmt.Errorf("DIGEST_HOUR_UTC must be in [0, 23]")
	}
	if c.WeeklyHourUTC < 0 || c.WeeklyHourUTC > 23 {
		return fmt.Errorf("WEEKLY_HOUR_UTC must be in [0, 23]")
	}
	if c.WeeklyWeekday < 0 || c.WeeklyWeekday > 6 {
		return fmt.Errorf("WEEKLY_WEEKDAY must be in [0, 6] (Sunday = 0)")
	}
	if c.DigestTopK < 1 {
		return fmt.Errorf("DIGEST_TOP_K must be >= 1")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if c.SourceTimeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT must be positive")
	}
	return nil
}

// LanguageList splits the LANGUAGES allowlist into normalized ISO codes.
func (c *Config) LanguageList() []string {
	return splitCSV(c.Languages, strings.ToLower)
}

// BreakthroughPatternList splits the configured high-signal patterns.
func (c *Config) BreakthroughPatternList() []string {
	return splitCSV(c.BreakthroughPatterns, strings.ToLower)
}

func splitCSV(raw string, normalize func(string) string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		if normalize != nil {
			value = normalize(value)
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
