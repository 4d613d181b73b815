// Package pipeline implements the processing stages between raw source
// output and stored, ranked items: normalization, deduplication,
// ranking, and notification trigger evaluation.
package pipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
	"github.com/raphaelschols/ai-intel-hub/internal/langdetect"
	sourceschema "github.com/raphaelschols/ai-intel-hub/schema"
)

// Canonical field names the normalizer consumes after mapping.
const (
	fieldTitle       = "title"
	fieldSummary     = "summary"
	fieldURL         = "url"
	fieldDOI         = "doi"
	fieldPublishedAt = "published_at"
	fieldCitations   = "citation_count"
	fieldEngagement  = "engagement"
)

// NormalizeOptions carries the knobs that shape a canonical item.
type NormalizeOptions struct {
	// Vocabulary is the ordered keyword list matched against title and
	// summary. Matching is case-insensitive substring.
	Vocabulary []string

	// Languages is the lowercase ISO 639-1 allowlist. Empty means accept
	// everything.
	Languages []string

	// SummaryMaxRunes truncates the cleaned summary. Zero disables
	// truncation.
	SummaryMaxRunes int

	// RequireKeywordKinds lists source kinds whose items are dropped when
	// no vocabulary keyword matches. General-interest feeds carry plenty
	// of off-topic entries; curated APIs do not.
	RequireKeywordKinds []string
}

func (o NormalizeOptions) requiresKeyword(kind string) bool {
	for _, k := range o.RequireKeywordKinds {
		if strings.EqualFold(k, kind) {
			return true
		}
	}
	return false
}

// SkipReason explains why a raw entry did not become an item.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipMissingTitle    SkipReason = "missing_title"
	SkipMissingURL      SkipReason = "missing_url"
	SkipLanguage        SkipReason = "language"
	SkipNoKeywords      SkipReason = "no_keywords"
	SkipUnparseableLink SkipReason = "unparseable_link"
)

// Normalize maps a raw field bag into a canonical item. The boolean
// reports whether the entry survived; when it did not, the reason says
// why.
func Normalize(raw feed.RawItem, src sourceschema.Source, opts NormalizeOptions, now time.Time, batchID string) (feed.Item, SkipReason) {
	get := func(canonical string) string {
		if mapped, ok := src.FieldMapping[canonical]; ok && mapped != "" {
			return raw.Get(mapped)
		}
		return raw.Get(canonical)
	}

	title := collapseWhitespace(stripHTML(get(fieldTitle)))
	if title == "" {
		return feed.Item{}, SkipMissingTitle
	}

	link := get(fieldURL)
	if link == "" {
		link = get(fieldDOI)
	}
	if link == "" {
		return feed.Item{}, SkipMissingURL
	}
	canonicalURL := canonicalizeURL(link)
	if canonicalURL == "" {
		return feed.Item{}, SkipUnparseableLink
	}

	summary := stripHTML(get(fieldSummary))
	if opts.SummaryMaxRunes > 0 {
		summary = truncateRunes(summary, opts.SummaryMaxRunes)
	}

	if len(opts.Languages) > 0 {
		if code := langdetect.DetectISO6391(title + " " + summary); code != "" && !containsFold(opts.Languages, code) {
			return feed.Item{}, SkipLanguage
		}
	}

	keywords := extractKeywords(title+" "+summary, opts.Vocabulary)
	if len(keywords) == 0 && opts.requiresKeyword(src.Kind) {
		return feed.Item{}, SkipNoKeywords
	}

	publishedAt := parsePublishedAt(get(fieldPublishedAt))
	if publishedAt.IsZero() {
		publishedAt = now
	}

	citations := 0
	reportsCitation := false
	if src.ReportsCitations {
		reportsCitation = true
		if v := get(fieldCitations); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
				citations = parsed
			}
		}
	}

	var engagement *float64
	if v := get(fieldEngagement); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 {
			engagement = &parsed
		}
	}

	fingerprint := feed.TitleFingerprint(title)
	item := feed.Item{
		ID:              feed.ItemID(src.Name, canonicalURL, fingerprint),
		Title:           title,
		SourceName:      src.Name,
		Category:        src.Category,
		PublishedAt:     publishedAt,
		URL:             canonicalURL,
		CitationCount:   citations,
		ReportsCitation: reportsCitation,
		Keywords:        keywords,
		RawText:         summary,
		Engagement:      engagement,
		FirstSeenAt:     now,
		LastSeenAt:      now,
		BatchID:         batchID,
		Observations:    1,
		Sources:         []string{src.Name},
	}
	return item, SkipNone
}

var publishedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func parsePublishedAt(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range publishedAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// extractKeywords returns vocabulary terms found in the text, ordered by
// first occurrence and deduplicated.
func extractKeywords(text string, vocabulary []string) []string {
	if len(vocabulary) == 0 {
		return nil
	}
	lowered := strings.ToLower(text)

	type match struct {
		term string
		pos  int
	}
	matches := make([]match, 0, 4)
	seen := make(map[string]struct{}, 4)
	for _, term := range vocabulary {
		needle := strings.ToLower(strings.TrimSpace(term))
		if needle == "" {
			continue
		}
		if _, dup := seen[needle]; dup {
			continue
		}
		if pos := strings.Index(lowered, needle); pos >= 0 {
			seen[needle] = struct{}{}
			matches = append(matches, match{term: needle, pos: pos})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	// Stable insertion sort by first occurrence; vocab lists are short.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].pos < matches[j-1].pos; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.term
	}
	return out
}

func containsFold(haystack []string, needle string) bool {
	for _, v := range haystack {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}
