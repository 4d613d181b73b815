package pipeline

import (
	"testing"
	"time"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
)

func makeItem(title, source, url string, published time.Time) feed.Item {
	fp := feed.TitleFingerprint(title)
	return feed.Item{
		ID:           feed.ItemID(source, url, fp),
		Title:        title,
		SourceName:   source,
		URL:          url,
		PublishedAt:  published,
		FirstSeenAt:  published,
		LastSeenAt:   published,
		Observations: 1,
		Sources:      []string{source},
	}
}

func TestDedupeSameURLDifferentSourceIDs(t *testing.T) {
	published := time.Date(2026, time.August, 29, 9, 0, 0, 0, time.UTC)

	// Same source, same URL, same title: sources assign their own ids but
	// ours is derived, so these collapse on exact id.
	a := makeItem("Model X released", "alpha", "https://example.com/model-x", published)
	b := makeItem("Model X released", "alpha", "https://example.com/model-x", published.Add(time.Hour))
	a.CitationCount = 3
	b.CitationCount = 11

	result := Dedupe([]feed.Item{a, b}, nil, DedupeOptions{SimilarityThreshold: 0.85, Window: 24 * time.Hour})

	if len(result.Items) != 1 {
		t.Fatalf("expected 1 merged item, got %d", len(result.Items))
	}
	if result.Duplicates != 1 {
		t.Fatalf("expected 1 duplicate, got %d", result.Duplicates)
	}
	if result.Items[0].CitationCount != 11 {
		t.Fatalf("expected max citation count 11, got %d", result.Items[0].CitationCount)
	}
}

func TestDedupeSimilarTitlesCrossSourceWithinWindow(t *testing.T) {
	published := time.Date(2026, time.August, 29, 9, 0, 0, 0, time.UTC)

	a := makeItem("OpenAI announces new frontier model", "alpha", "https://a.example.com/1", published)
	b := makeItem("OpenAI announces new frontier models", "beta", "https://b.example.com/2", published.Add(2*time.Hour))

	threshold := titleSimilarity(
		feed.TitleFingerprint(a.Title),
		feed.TitleFingerprint(b.Title),
	)
	if threshold <= 0 || threshold >= 1 {
		t.Fatalf("test titles must be near-duplicates, similarity %v", threshold)
	}

	// Inclusive boundary: exactly at the threshold merges.
	result := Dedupe([]feed.Item{a, b}, nil, DedupeOptions{SimilarityThreshold: threshold, Window: 24 * time.Hour})
	if len(result.Items) != 1 {
		t.Fatalf("expected merge at exact threshold, got %d items", len(result.Items))
	}
	if result.Items[0].DistinctSources() != 2 {
		t.Fatalf("expected corroboration from 2 sources, got %d", result.Items[0].DistinctSources())
	}

	// Just above the measured similarity: no merge.
	result = Dedupe([]feed.Item{a, b}, nil, DedupeOptions{SimilarityThreshold: threshold + 1e-9, Window: 24 * time.Hour})
	if len(result.Items) != 2 {
		t.Fatalf("expected no merge above threshold, got %d items", len(result.Items))
	}
}

func TestDedupeCrossSourceOutsideWindow(t *testing.T) {
	published := time.Date(2026, time.August, 20, 9, 0, 0, 0, time.UTC)

	a := makeItem("Exact same headline here", "alpha", "https://a.example.com/1", published)
	b := makeItem("Exact same headline here", "beta", "https://b.example.com/2", published.Add(72*time.Hour))

	result := Dedupe([]feed.Item{a, b}, nil, DedupeOptions{SimilarityThreshold: 0.85, Window: 24 * time.Hour})
	if len(result.Items) != 2 {
		t.Fatalf("cross-source match outside window must not merge, got %d items", len(result.Items))
	}
}

func TestDedupeAgainstExisting(t *testing.T) {
	published := time.Date(2026, time.August, 29, 9, 0, 0, 0, time.UTC)

	stored := makeItem("Benchmark results published", "alpha", "https://example.com/bench", published)
	stored.FirstSeenAt = published.Add(-48 * time.Hour)

	incoming := makeItem("Benchmark results published", "alpha", "https://example.com/bench", published)
	incoming.LastSeenAt = published.Add(24 * time.Hour)
	incoming.BatchID = "batch-2"

	existing := []feed.Item{stored}
	result := Dedupe([]feed.Item{incoming}, existing, DedupeOptions{SimilarityThreshold: 0.85, Window: 24 * time.Hour})

	if len(result.Items) != 0 {
		t.Fatalf("expected no new items, got %d", len(result.Items))
	}
	if len(result.UpdatedExisting) != 1 {
		t.Fatalf("expected 1 updated existing item, got %d", len(result.UpdatedExisting))
	}
	updated := result.UpdatedExisting[0]
	if !updated.FirstSeenAt.Equal(published.Add(-48 * time.Hour)) {
		t.Fatalf("first_seen_at regressed: %v", updated.FirstSeenAt)
	}
	if updated.BatchID != "batch-2" {
		t.Fatalf("expected most recent batch id, got %q", updated.BatchID)
	}
	if updated.Observations != 2 {
		t.Fatalf("expected 2 observations, got %d", updated.Observations)
	}
}
