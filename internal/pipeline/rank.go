package pipeline

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
)

// Weights assigns relative importance to each scoring factor. Absent
// factors have their weight redistributed across the present ones, so
// the composite stays a weighted average of what is actually known.
type Weights struct {
	Recency    float64
	Citation   float64
	Keyword    float64
	Source     float64
	Novelty    float64
	Engagement float64
}

// RankOptions configures the scorer.
type RankOptions struct {
	Weights Weights

	// RecencyHalfLife is the age at which the recency factor halves.
	RecencyHalfLife time.Duration

	// KeywordCap saturates the keyword factor at this many matches.
	KeywordCap int

	// NoveltySaturation is the distinct-source count at which novelty
	// reaches 1.
	NoveltySaturation int

	// SourceCredibility maps source name to its configured weight in
	// [0, 1]. Unknown sources score 0.5.
	SourceCredibility map[string]float64

	// BreakthroughPatterns are lowercase substrings that mark an item as
	// a likely breakthrough; a match multiplies the composite by
	// BreakthroughBonus, capped at ScoreCeiling.
	BreakthroughPatterns []string
	BreakthroughBonus    float64
	ScoreCeiling         float64
}

// BatchContext holds the per-batch aggregates the relative factors
// normalize against.
type BatchContext struct {
	Now time.Time

	// MaxCitations is the highest citation count among batch items whose
	// source reports citations.
	MaxCitations int

	// MaxEngagementByCategory is the highest engagement value per
	// category among batch items that carry one.
	MaxEngagementByCategory map[string]float64
}

// NewBatchContext derives the normalization aggregates from the items
// about to be scored.
func NewBatchContext(items []feed.Item, now time.Time) BatchContext {
	ctx := BatchContext{
		Now:                     now,
		MaxEngagementByCategory: make(map[string]float64),
	}
	for i := range items {
		it := &items[i]
		if it.ReportsCitation && it.CitationCount > ctx.MaxCitations {
			ctx.MaxCitations = it.CitationCount
		}
		if it.Engagement != nil && *it.Engagement > ctx.MaxEngagementByCategory[it.Category] {
			ctx.MaxEngagementByCategory[it.Category] = *it.Engagement
		}
	}
	return ctx
}

type scoreFactor struct {
	weight  float64
	value   float64
	present bool
}

// Score computes the composite importance score for one item.
func Score(item *feed.Item, opts RankOptions, ctx BatchContext) float64 {
	factors := []scoreFactor{
		{weight: opts.Weights.Recency, value: recencyFactor(item, opts, ctx), present: true},
		citationFactor(item, opts, ctx),
		{weight: opts.Weights.Keyword, value: keywordFactor(item, opts), present: true},
		{weight: opts.Weights.Source, value: sourceFactor(item, opts), present: true},
		{weight: opts.Weights.Novelty, value: noveltyFactor(item, opts), present: true},
		engagementFactor(item, opts, ctx),
	}

	var weightedSum, weightTotal float64
	for _, f := range factors {
		if !f.present || f.weight <= 0 {
			continue
		}
		weightedSum += f.weight * f.value
		weightTotal += f.weight
	}
	if weightTotal == 0 {
		return 0
	}

	score := weightedSum / weightTotal
	if matchesBreakthrough(item, opts.BreakthroughPatterns) && opts.BreakthroughBonus > 1 {
		score *= opts.BreakthroughBonus
	}
	if opts.ScoreCeiling > 0 && score > opts.ScoreCeiling {
		score = opts.ScoreCeiling
	}
	return score
}

// Rank scores every item and orders them by descending score, breaking
// ties by earlier first-seen time and then by ID so output is stable.
func Rank(items []feed.Item, opts RankOptions, ctx BatchContext) []feed.Item {
	for i := range items {
		items[i].ImportanceScore = Score(&items[i], opts, ctx)
	}
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].ImportanceScore != items[b].ImportanceScore {
			return items[a].ImportanceScore > items[b].ImportanceScore
		}
		if !items[a].FirstSeenAt.Equal(items[b].FirstSeenAt) {
			return items[a].FirstSeenAt.Before(items[b].FirstSeenAt)
		}
		return items[a].ID < items[b].ID
	})
	return items
}

// recencyFactor decays exponentially with age: exp(-ln2 * age / halfLife).
func recencyFactor(item *feed.Item, opts RankOptions, ctx BatchContext) float64 {
	if opts.RecencyHalfLife <= 0 {
		return 0
	}
	reference := item.PublishedAt
	if reference.IsZero() {
		reference = item.FirstSeenAt
	}
	age := ctx.Now.Sub(reference)
	if age <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * age.Seconds() / opts.RecencyHalfLife.Seconds())
}

// citationFactor is log-scaled against the batch maximum. It is absent
// when the source does not report citations, when the count is zero, or
// when no batch item has citations, so citation-less items are not
// penalized against a factor they cannot express.
func citationFactor(item *feed.Item, opts RankOptions, ctx BatchContext) scoreFactor {
	out := scoreFactor{weight: opts.Weights.Citation}

	if !item.ReportsCitation || item.CitationCount <= 0 || ctx.MaxCitations <= 0 {
		return out
	}
	out.present = true
	out.value = math.Log1p(float64(item.CitationCount)) / math.Log1p(float64(ctx.MaxCitations))
	return out
}

func keywordFactor(item *feed.Item, opts RankOptions) float64 {
	limit := opts.KeywordCap
	if limit < 1 {
		limit = 1
	}
	v := float64(len(item.Keywords)) / float64(limit)
	if v > 1 {
		v = 1
	}
	return v
}

func sourceFactor(item *feed.Item, opts RankOptions) float64 {
	if w, ok := opts.SourceCredibility[item.SourceName]; ok {
		return w
	}
	return 0.5
}

func noveltyFactor(item *feed.Item, opts RankOptions) float64 {
	saturation := opts.NoveltySaturation
	if saturation < 1 {
		saturation = 1
	}
	v := float64(item.DistinctSources()) / float64(saturation)
	if v > 1 {
		v = 1
	}
	return v
}

// engagementFactor normalizes against the best engagement in the item's
// category; absent when the item carries no engagement signal.
func engagementFactor(item *feed.Item, opts RankOptions, ctx BatchContext) scoreFactor {
	out := scoreFactor{weight: opts.Weights.Engagement}

	if item.Engagement == nil {
		return out
	}
	max := ctx.MaxEngagementByCategory[item.Category]
	if max <= 0 {
		return out
	}
	out.present = true
	out.value = *item.Engagement / max
	if out.value > 1 {
		out.value = 1
	}
	return out
}

func matchesBreakthrough(item *feed.Item, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	haystack := strings.ToLower(item.Title + " " + item.RawText)
	for _, pattern := range patterns {
		if pattern != "" && strings.Contains(haystack, pattern) {
			return true
		}
	}
	return false
}
