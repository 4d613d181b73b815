// Package feed defines the canonical content types shared by the
// collection, dedup, ranking, and notification stages.
package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// RawItem is the unprocessed field bag returned by a source adapter.
// Keys are source-specific; the normalizer maps them through the
// source's declared field mapping.
type RawItem map[string]string

// Get returns a trimmed field value or "" when absent.
func (r RawItem) Get(key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r[key])
}

// Item is the canonical, deduplicated unit of work.
type Item struct {
	ID              string
	Title           string
	SourceName      string
	Category        string
	PublishedAt     time.Time
	URL             string
	CitationCount   int
	ReportsCitation bool
	Keywords        []string
	RawText         string
	Engagement      *float64

	ImportanceScore float64
	FirstSeenAt     time.Time
	LastSeenAt      time.Time
	BatchID         string

	// Dedup bookkeeping: how many observations merged into this item and
	// which distinct sources corroborated it.
	Observations int
	Sources      []string
}

// ItemID derives the stable identifier from normalized source name,
// canonical URL (or DOI), and title fingerprint. Source-assigned IDs are
// never trusted.
func ItemID(sourceName, canonicalURL, titleFingerprint string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(sourceName)) + "\n" + canonicalURL + "\n" + titleFingerprint))
	return hex.EncodeToString(h[:16])
}

// TitleFingerprint case-folds, strips punctuation, and collapses
// whitespace. The same form feeds both ID derivation and similarity
// comparison so the two dedup criteria agree on what a title is.
func TitleFingerprint(title string) string {
	lowered := strings.ToLower(strings.TrimSpace(title))
	if lowered == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(lowered))
	lastSpace := false
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// MergeFrom folds a duplicate observation into the receiver per the
// merge policy: earliest first_seen_at, maximum citation count, keyword
// union, most recent batch id, and the more complete record wins the
// display fields.
func (it *Item) MergeFrom(other Item) {
	if other.FirstSeenAt.Before(it.FirstSeenAt) && !other.FirstSeenAt.IsZero() {
		it.FirstSeenAt = other.FirstSeenAt
	}
	if other.LastSeenAt.After(it.LastSeenAt) {
		it.LastSeenAt = other.LastSeenAt
		it.BatchID = other.BatchID
	}
	if other.CitationCount > it.CitationCount {
		it.CitationCount = other.CitationCount
	}
	it.ReportsCitation = it.ReportsCitation || other.ReportsCitation
	if other.Engagement != nil {
		if it.Engagement == nil || *other.Engagement > *it.Engagement {
			v := *other.Engagement
			it.Engagement = &v
		}
	}

	it.Keywords = unionKeywords(it.Keywords, other.Keywords)

	if other.completeness() > it.completeness() {
		it.Title = other.Title
		it.URL = other.URL
		it.Category = other.Category
		if !other.PublishedAt.IsZero() {
			it.PublishedAt = other.PublishedAt
		}
		if other.RawText != "" {
			it.RawText = other.RawText
		}
	}

	it.Observations += maxInt(other.Observations, 1)
	it.Sources = unionKeywords(it.Sources, other.allSources())
}

func (it *Item) allSources() []string {
	if len(it.Sources) > 0 {
		return it.Sources
	}
	if it.SourceName == "" {
		return nil
	}
	return []string{it.SourceName}
}

// DistinctSources counts the independent sources that corroborated this
// item, used by the novelty factor.
func (it *Item) DistinctSources() int {
	n := len(it.allSources())
	if n == 0 {
		n = 1
	}
	return n
}

func (it *Item) completeness() int {
	score := 0
	if strings.TrimSpace(it.Title) != "" {
		score++
	}
	if strings.TrimSpace(it.URL) != "" {
		score++
	}
	if strings.TrimSpace(it.Category) != "" {
		score++
	}
	if !it.PublishedAt.IsZero() {
		score++
	}
	if it.ReportsCitation {
		score++
	}
	if len(it.Keywords) > 0 {
		score++
	}
	if strings.TrimSpace(it.RawText) != "" {
		score++
	}
	return score
}

func unionKeywords(left, right []string) []string {
	if len(right) == 0 {
		return left
	}
	seen := make(map[string]struct{}, len(left)+len(right))
	merged := make([]string, 0, len(left)+len(right))
	for _, lists := range [][]string{left, right} {
		for _, kw := range lists {
			if _, ok := seen[kw]; ok {
				continue
			}
			seen[kw] = struct{}{}
			merged = append(merged, kw)
		}
	}
	return merged
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
