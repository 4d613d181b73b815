package pipeline

import (
	"time"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
)

// DedupeOptions controls the similarity ladder.
type DedupeOptions struct {
	// SimilarityThreshold is the trigram Jaccard boundary, inclusive.
	SimilarityThreshold float64

	// Window bounds the publication-time distance for cross-source
	// similarity matches.
	Window time.Duration
}

// DedupeResult separates genuinely new items from updates to already
// stored ones.
type DedupeResult struct {
	// Items are the new canonical items after intra-batch merging.
	Items []feed.Item

	// UpdatedExisting are stored items that absorbed a batch observation
	// and must be written back.
	UpdatedExisting []feed.Item

	// Duplicates counts batch entries merged away.
	Duplicates int
}

// Dedupe collapses duplicate observations, first inside the batch and
// then against the active stored set. Ladder order is exact ID match,
// then title similarity at or above the threshold combined with either
// the same source or publication within the window.
func Dedupe(batch []feed.Item, existing []feed.Item, opts DedupeOptions) DedupeResult {
	var result DedupeResult

	// Pass 1: intra-batch. Keep first occurrence, merge the rest in.
	kept := make([]feed.Item, 0, len(batch))
	byID := make(map[string]int, len(batch))
	for _, item := range batch {
		if idx, ok := byID[item.ID]; ok {
			kept[idx].MergeFrom(item)
			result.Duplicates++
			continue
		}
		if idx, ok := findSimilar(kept, item, opts); ok {
			kept[idx].MergeFrom(item)
			result.Duplicates++
			continue
		}
		byID[item.ID] = len(kept)
		kept = append(kept, item)
	}

	// Pass 2: against stored items. A match updates the stored record
	// instead of inserting a new one.
	existingByID := make(map[string]int, len(existing))
	for i, item := range existing {
		existingByID[item.ID] = i
	}
	touched := make(map[int]struct{})

	for _, item := range kept {
		if idx, ok := existingByID[item.ID]; ok {
			existing[idx].MergeFrom(item)
			touched[idx] = struct{}{}
			result.Duplicates++
			continue
		}
		if idx, ok := findSimilar(existing, item, opts); ok {
			existing[idx].MergeFrom(item)
			touched[idx] = struct{}{}
			result.Duplicates++
			continue
		}
		result.Items = append(result.Items, item)
	}

	for i := range existing {
		if _, ok := touched[i]; ok {
			result.UpdatedExisting = append(result.UpdatedExisting, existing[i])
		}
	}
	return result
}

func findSimilar(pool []feed.Item, candidate feed.Item, opts DedupeOptions) (int, bool) {
	candidateFP := feed.TitleFingerprint(candidate.Title)
	if candidateFP == "" {
		return 0, false
	}
	for i := range pool {
		if !similarityEligible(pool[i], candidate, opts.Window) {
			continue
		}
		if titleSimilarity(feed.TitleFingerprint(pool[i].Title), candidateFP) >= opts.SimilarityThreshold {
			return i, true
		}
	}
	return 0, false
}

// similarityEligible gates the expensive comparison: same source always
// qualifies, cross-source only when published within the window.
func similarityEligible(a, b feed.Item, window time.Duration) bool {
	if a.SourceName == b.SourceName {
		return true
	}
	if a.PublishedAt.IsZero() || b.PublishedAt.IsZero() {
		return false
	}
	delta := a.PublishedAt.Sub(b.PublishedAt)
	if delta < 0 {
		delta = -delta
	}
	return delta <= window
}
