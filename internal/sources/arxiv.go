package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
	sourceschema "github.com/raphaelschols/ai-intel-hub/schema"
)

var arxivDateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// Arxiv scrapes an arXiv category listing page for recent submissions.
type Arxiv struct {
	cfg    sourceschema.Source
	client *http.Client
	limit  int
}

func NewArxiv(cfg sourceschema.Source, opts Options) *Arxiv {
	return &Arxiv{
		cfg:    cfg,
		client: opts.client(),
		limit:  opts.limit(),
	}
}

func (a *Arxiv) Name() string {
	return a.cfg.Name
}

func (a *Arxiv) Config() sourceschema.Source {
	return a.cfg
}

func (a *Arxiv) Fetch(ctx context.Context) ([]feed.RawItem, error) {
	pageURL, err := arxivPageURL(a.cfg.URL, a.limit)
	if err != nil {
		return nil, &FetchError{Source: a.cfg.Name, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{Source: a.cfg.Name, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: a.cfg.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Source: a.cfg.Name, Err: fmt.Errorf("arxiv returned %s", resp.Status)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &FetchError{Source: a.cfg.Name, Err: fmt.Errorf("parse listing: %w", err)}
	}

	return a.extract(doc), nil
}

func (a *Arxiv) extract(doc *goquery.Document) []feed.RawItem {
	items := make([]feed.RawItem, 0, a.limit)

	doc.Find("dl > dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		if len(items) >= a.limit {
			return false
		}
		dd := dt.Next()

		link := dt.Find(`a[href*="/abs/"]`).First()
		href, _ := link.Attr("href")
		if href == "" {
			return true
		}
		if !strings.HasPrefix(href, "http") {
			href = "https://arxiv.org" + href
		}

		title := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(dd.Find(".list-title").First().Text()), "Title:"))
		abstract := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(dd.Find(".mathjax").First().Text()), "Abstract:"))

		raw := feed.RawItem{
			"title":   title,
			"summary": abstract,
			"url":     href,
		}

		dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
		if dateText == "" {
			dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
		}
		if match := arxivDateExpr.FindString(dateText); match != "" {
			if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
				raw["published_at"] = parsed.UTC().Format(time.RFC3339)
			}
		}

		items = append(items, raw)
		return true
	})

	return items
}

func arxivPageURL(base string, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}
	query := parsed.Query()
	query.Set("skip", "0")
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
