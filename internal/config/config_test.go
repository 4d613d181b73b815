package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:       "postgres://localhost:5432/intelhub",
		DBMaxConns:        8,
		SourcesFile:       "sources.json",
		WeightRecency:     0.3,
		WeightCitation:    0.2,
		WeightKeyword:     0.2,
		WeightSource:      0.2,
		WeightNovelty:     0.1,
		RecencyHalfLife:   48 * time.Hour,
		KeywordCap:        5,
		NoveltySaturation: 3,
		BreakthroughBonus: 1.15,
		ScoreCeiling:      1.0,
		BreakingThreshold: 0.75,
		DigestHourUTC:     9,
		DigestTopK:        10,
		WeeklyWeekday:     1,
		WeeklyHourUTC:     9,
		DedupSimilarity:   0.85,
		DedupWindow:       24 * time.Hour,
		ActiveWindow:      168 * time.Hour,
		SourceTimeout:     30 * time.Second,
		RetryMaxAttempts:  3,
		RetryBaseDelay:    500 * time.Millisecond,
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/intelhub")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Environment != "local" {
		t.Errorf("Environment = %q, want local", cfg.Environment)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.SourcesFile != "sources.json" {
		t.Errorf("SourcesFile = %q, want sources.json", cfg.SourcesFile)
	}
	if cfg.WeightRecency != 0.3 || cfg.WeightEngagement != 0 {
		t.Errorf("unexpected default weights: recency=%v engagement=%v", cfg.WeightRecency, cfg.WeightEngagement)
	}
	if cfg.RecencyHalfLife != 48*time.Hour {
		t.Errorf("RecencyHalfLife = %v, want 48h", cfg.RecencyHalfLife)
	}
	if cfg.BreakingThreshold != 0.75 {
		t.Errorf("BreakingThreshold = %v, want 0.75", cfg.BreakingThreshold)
	}
	if cfg.DedupSimilarity != 0.85 || cfg.DedupWindow != 24*time.Hour {
		t.Errorf("dedup defaults: similarity=%v window=%v", cfg.DedupSimilarity, cfg.DedupWindow)
	}
	if cfg.LoopInterval != 6*time.Hour {
		t.Errorf("LoopInterval = %v, want 6h", cfg.LoopInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/intelhub")
	t.Setenv("BREAKING_THRESHOLD", "0.9")
	t.Setenv("LANGUAGES", "en, de")
	t.Setenv("LOOP_INTERVAL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BreakingThreshold != 0.9 {
		t.Errorf("BreakingThreshold = %v, want 0.9", cfg.BreakingThreshold)
	}
	if got := cfg.LanguageList(); !reflect.DeepEqual(got, []string{"en", "de"}) {
		t.Errorf("LanguageList = %v", got)
	}
	if cfg.LoopInterval != 30*time.Minute {
		t.Errorf("LoopInterval = %v, want 30m", cfg.LoopInterval)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing database url",
			mutate:  func(c *Config) { c.DatabaseURL = "  " },
			wantSub: "DATABASE_URL",
		},
		{
			name:    "negative weight",
			mutate:  func(c *Config) { c.WeightCitation = -0.1 },
			wantSub: "WEIGHT_CITATION",
		},
		{
			name: "all weights zero",
			mutate: func(c *Config) {
				c.WeightRecency = 0
				c.WeightCitation = 0
				c.WeightKeyword = 0
				c.WeightSource = 0
				c.WeightNovelty = 0
				c.WeightEngagement = 0
			},
			wantSub: "positive total",
		},
		{
			name:    "breaking threshold above one",
			mutate:  func(c *Config) { c.BreakingThreshold = 1.2 },
			wantSub: "BREAKING_THRESHOLD",
		},
		{
			name:    "zero dedup similarity",
			mutate:  func(c *Config) { c.DedupSimilarity = 0 },
			wantSub: "DEDUP_SIMILARITY",
		},
		{
			name:    "digest hour out of range",
			mutate:  func(c *Config) { c.DigestHourUTC = 24 },
			wantSub: "DIGEST_HOUR_UTC",
		},
		{
			name:    "weekday out of range",
			mutate:  func(c *Config) { c.WeeklyWeekday = 7 },
			wantSub: "WEEKLY_WEEKDAY",
		},
		{
			name:    "bonus below one",
			mutate:  func(c *Config) { c.BreakthroughBonus = 0.9 },
			wantSub: "BREAKTHROUGH_BONUS",
		},
		{
			name:    "zero retry attempts",
			mutate:  func(c *Config) { c.RetryMaxAttempts = 0 },
			wantSub: "RETRY_MAX_ATTEMPTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestBreakthroughPatternList(t *testing.T) {
	cfg := validConfig()
	cfg.BreakthroughPatterns = "Breakthrough, state-of-the-art,,breakthrough"

	got := cfg.BreakthroughPatternList()
	want := []string{"breakthrough", "state-of-the-art"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BreakthroughPatternList = %v, want %v", got, want)
	}
}
