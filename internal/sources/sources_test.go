package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sourceschema "github.com/raphaelschols/ai-intel-hub/schema"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <link>https://example.com</link>
    <item>
      <title>First post</title>
      <link>https://example.com/first</link>
      <description>An LLM writeup.</description>
      <pubDate>Sat, 29 Aug 2026 08:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second post</title>
      <link>https://example.com/second</link>
      <description>Another entry.</description>
    </item>
    <item>
      <title>Third post</title>
      <link>https://example.com/third</link>
    </item>
  </channel>
</rss>`

func rssConfig(url string) sourceschema.Source {
	return sourceschema.Source{
		Name:     "Example Blog",
		Kind:     "rss",
		Category: "News",
		URL:      url,
	}
}

func TestRSSFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("User-Agent = %q, want %q", got, userAgent)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFixture))
	}))
	defer server.Close()

	adapter := NewRSS(rssConfig(server.URL), Options{ItemLimit: 2})
	items, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("item limit not applied, got %d items", len(items))
	}
	if items[0]["title"] != "First post" || items[0]["url"] != "https://example.com/first" {
		t.Errorf("first item mapped as %v", items[0])
	}
	if items[0]["summary"] != "An LLM writeup." {
		t.Errorf("summary = %q", items[0]["summary"])
	}
	if items[0]["published_at"] != "2026-08-29T08:00:00Z" {
		t.Errorf("published_at = %q", items[0]["published_at"])
	}
	if items[1]["title"] != "Second post" {
		t.Errorf("second item mapped as %v", items[1])
	}
}

func TestRSSFetchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewRSS(rssConfig(server.URL), Options{})
	_, err := adapter.Fetch(context.Background())
	if err == nil {
		t.Fatalf("expected error on 500 response")
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Source != "Example Blog" {
		t.Fatalf("error not attributed to the source: %v", err)
	}
}

func TestSemanticScholarFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("query") == "" {
			t.Errorf("default query not applied")
		}
		if q.Get("limit") != "3" {
			t.Errorf("limit = %q, want 3", q.Get("limit"))
		}
		if !strings.Contains(q.Get("fields"), "citationCount") {
			t.Errorf("fields = %q", q.Get("fields"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [
			{"title": "Paper A", "abstract": "About agents.", "url": "https://example.org/a", "citationCount": 42, "publicationDate": "2026-08-15"}
		]}`))
	}))
	defer server.Close()

	cfg := sourceschema.Source{
		Name:             "Papers",
		Kind:             "semanticscholar",
		Category:         "Research",
		URL:              server.URL,
		ReportsCitations: true,
	}
	adapter := NewSemanticScholar(cfg, Options{ItemLimit: 3})
	items, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0]["citation_count"] != "42" {
		t.Errorf("citation_count = %q", items[0]["citation_count"])
	}
	if items[0]["published_at"] != "2026-08-15" {
		t.Errorf("published_at = %q", items[0]["published_at"])
	}
}

func TestSemanticScholarRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := sourceschema.Source{Name: "Papers", Kind: "semanticscholar", Category: "Research", URL: server.URL}
	adapter := NewSemanticScholar(cfg, Options{})
	_, err := adapter.Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

const arxivFixture = `<html><body><dl>
<dt><a href="/abs/2608.01234">arXiv:2608.01234</a></dt>
<dd>
  <div class="list-title">Title: Scaling sparse attention</div>
  <div class="list-date">Announced 28 Aug 2026</div>
  <p class="mathjax">Abstract: We study sparse attention at scale.</p>
</dd>
<dt><a href="/abs/2608.05678">arXiv:2608.05678</a></dt>
<dd>
  <div class="list-title">Title: Second paper</div>
  <p class="mathjax">Abstract: More results.</p>
</dd>
</dl></body></html>`

func TestArxivFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("show") != "5" {
			t.Errorf("show = %q, want 5", r.URL.Query().Get("show"))
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(arxivFixture))
	}))
	defer server.Close()

	cfg := sourceschema.Source{Name: "arXiv cs.AI", Kind: "arxiv", Category: "Research", URL: server.URL}
	adapter := NewArxiv(cfg, Options{ItemLimit: 5})
	items, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0]["title"] != "Scaling sparse attention" {
		t.Errorf("title = %q", items[0]["title"])
	}
	if items[0]["url"] != "https://arxiv.org/abs/2608.01234" {
		t.Errorf("url = %q", items[0]["url"])
	}
	if items[0]["summary"] != "We study sparse attention at scale." {
		t.Errorf("summary = %q", items[0]["summary"])
	}
	if items[0]["published_at"] != "2026-08-28T00:00:00Z" {
		t.Errorf("published_at = %q", items[0]["published_at"])
	}
	if _, ok := items[1]["published_at"]; ok {
		t.Errorf("second item should have no date, got %q", items[1]["published_at"])
	}
}

func TestBuild(t *testing.T) {
	disabled := false
	configs := []sourceschema.Source{
		{Name: "a", Kind: "rss", Category: "News", URL: "https://example.com/a"},
		{Name: "b", Kind: "arxiv", Category: "Research", URL: "https://example.com/b"},
		{Name: "c", Kind: "semanticscholar", Category: "Research", URL: "https://example.com/c"},
		{Name: "off", Kind: "rss", Category: "News", URL: "https://example.com/off", Enabled: &disabled},
	}

	adapters, err := Build(configs, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(adapters) != 3 {
		t.Fatalf("expected 3 adapters, got %d", len(adapters))
	}
	if adapters[0].Name() != "a" || adapters[2].Name() != "c" {
		t.Errorf("adapter order lost: %s, %s", adapters[0].Name(), adapters[2].Name())
	}

	_, err = Build([]sourceschema.Source{{Name: "x", Kind: "scraper", URL: "https://example.com/x"}}, Options{})
	if err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}
