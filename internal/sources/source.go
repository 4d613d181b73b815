// Package sources holds the per-source fetch adapters. Every adapter
// returns a flat []feed.RawItem; canonicalization happens downstream in
// the pipeline, never here.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
	sourceschema "github.com/raphaelschols/ai-intel-hub/schema"
)

// Source pulls raw items from one upstream provider.
type Source interface {
	Name() string
	Config() sourceschema.Source
	Fetch(ctx context.Context) ([]feed.RawItem, error)
}

// FetchError wraps a per-source failure so the coordinator can isolate
// and count it without aborting the cycle.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Options tunes adapter construction.
type Options struct {
	HTTPClient *http.Client
	ItemLimit  int
}

func (o Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (o Options) limit() int {
	if o.ItemLimit > 0 {
		return o.ItemLimit
	}
	return 5
}

// Build constructs adapters for every enabled source entry. Unknown
// kinds are rejected up front rather than failing mid-cycle.
func Build(configs []sourceschema.Source, opts Options) ([]Source, error) {
	adapters := make([]Source, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.IsEnabled() {
			continue
		}
		switch cfg.Kind {
		case "rss":
			adapters = append(adapters, NewRSS(cfg, opts))
		case "arxiv":
			adapters = append(adapters, NewArxiv(cfg, opts))
		case "semanticscholar":
			adapters = append(adapters, NewSemanticScholar(cfg, opts))
		default:
			return nil, fmt.Errorf("source %s: unknown kind %q", cfg.Name, cfg.Kind)
		}
	}
	return adapters, nil
}
