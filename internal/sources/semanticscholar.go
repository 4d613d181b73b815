package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
	sourceschema "github.com/raphaelschols/ai-intel-hub/schema"
)

const semanticScholarFields = "title,abstract,url,citationCount,publicationDate"

// SemanticScholar queries the paper search API, the one source in the
// default registry that reports citation counts.
type SemanticScholar struct {
	cfg    sourceschema.Source
	client *http.Client
	limit  int
}

func NewSemanticScholar(cfg sourceschema.Source, opts Options) *SemanticScholar {
	return &SemanticScholar{
		cfg:    cfg,
		client: opts.client(),
		limit:  opts.limit(),
	}
}

func (s *SemanticScholar) Name() string {
	return s.cfg.Name
}

func (s *SemanticScholar) Config() sourceschema.Source {
	return s.cfg
}

type scholarResponse struct {
	Data []struct {
		Title           string `json:"title"`
		Abstract        string `json:"abstract"`
		URL             string `json:"url"`
		CitationCount   int    `json:"citationCount"`
		PublicationDate string `json:"publicationDate"`
	} `json:"data"`
}

func (s *SemanticScholar) Fetch(ctx context.Context) ([]feed.RawItem, error) {
	endpoint, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, &FetchError{Source: s.cfg.Name, Err: fmt.Errorf("invalid api url: %w", err)}
	}
	query := endpoint.Query()
	if query.Get("query") == "" {
		query.Set("query", "artificial intelligence machine learning")
	}
	query.Set("limit", strconv.Itoa(s.limit))
	query.Set("fields", semanticScholarFields)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &FetchError{Source: s.cfg.Name, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: s.cfg.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &FetchError{Source: s.cfg.Name, Err: fmt.Errorf("rate limited")}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Source: s.cfg.Name, Err: fmt.Errorf("api returned %s", resp.Status)}
	}

	var payload scholarResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &FetchError{Source: s.cfg.Name, Err: fmt.Errorf("decode response: %w", err)}
	}

	items := make([]feed.RawItem, 0, len(payload.Data))
	for _, paper := range payload.Data {
		raw := feed.RawItem{
			"title":          paper.Title,
			"summary":        paper.Abstract,
			"url":            paper.URL,
			"citation_count": strconv.Itoa(paper.CitationCount),
		}
		if paper.PublicationDate != "" {
			// API returns YYYY-MM-DD; normalizer parses both forms.
			raw["published_at"] = paper.PublicationDate
		}
		items = append(items, raw)
	}
	return items, nil
}
