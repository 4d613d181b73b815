package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
	sourceschema "github.com/raphaelschols/ai-intel-hub/schema"
)

// RSS fetches RSS/Atom feeds and emits the newest entries as raw items.
type RSS struct {
	cfg    sourceschema.Source
	client *http.Client
	limit  int
}

func NewRSS(cfg sourceschema.Source, opts Options) *RSS {
	return &RSS{
		cfg:    cfg,
		client: opts.client(),
		limit:  opts.limit(),
	}
}

func (r *RSS) Name() string {
	return r.cfg.Name
}

func (r *RSS) Config() sourceschema.Source {
	return r.cfg
}

func (r *RSS) Fetch(ctx context.Context) ([]feed.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.URL, nil)
	if err != nil {
		return nil, &FetchError{Source: r.cfg.Name, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: r.cfg.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Source: r.cfg.Name, Err: fmt.Errorf("feed returned %s", resp.Status)}
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, &FetchError{Source: r.cfg.Name, Err: fmt.Errorf("parse feed: %w", err)}
	}

	entries := parsed.Items
	if len(entries) > r.limit {
		entries = entries[:r.limit]
	}

	items := make([]feed.RawItem, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		raw := feed.RawItem{
			"title": entry.Title,
			"url":   entry.Link,
		}
		if entry.Description != "" {
			raw["summary"] = entry.Description
		} else if entry.Content != "" {
			raw["summary"] = entry.Content
		}
		if ts := entryTimestamp(entry); !ts.IsZero() {
			raw["published_at"] = ts.UTC().Format(time.RFC3339)
		}
		items = append(items, raw)
	}
	return items, nil
}

func entryTimestamp(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return time.Time{}
}

const userAgent = "ai-intel-hub/1.0"
