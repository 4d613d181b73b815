package pipeline

import (
	"sort"
	"time"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
)

// TriggerConfig drives the three notification tracks.
type TriggerConfig struct {
	// BreakingThreshold is the score at or above which an unalerted item
	// emits a breaking intent.
	BreakingThreshold float64

	// DigestHourUTC opens the daily digest window.
	DigestHourUTC int
	// DigestTopK limits how many items a digest carries.
	DigestTopK int

	// WeeklyWeekday (Sunday = 0) and WeeklyHourUTC open the weekly
	// summary window.
	WeeklyWeekday int
	WeeklyHourUTC int
}

// TriggerResult is what one evaluation produced: the intents to
// dispatch, the advanced period state to persist, the item ids that
// must join the alerted set, and the phase each track ended in.
type TriggerResult struct {
	Intents      []feed.NotificationIntent
	State        feed.NotificationState
	NewlyAlerted []string
	Tracks       map[feed.IntentKind]feed.TrackState
}

// EvaluateTriggers runs the three independent tracks over the ranked
// batch. It never dispatches; the caller owns transport and owns
// persisting State and NewlyAlerted.
func EvaluateTriggers(ranked []feed.Item, state feed.NotificationState, alerted map[string]struct{}, cfg TriggerConfig, now time.Time) TriggerResult {
	result := TriggerResult{
		State: state,
		Tracks: map[feed.IntentKind]feed.TrackState{
			feed.IntentBreaking: feed.TrackIdle,
			feed.IntentDigest:   feed.TrackIdle,
			feed.IntentWeekly:   feed.TrackIdle,
		},
	}

	// Breaking: per-item, idempotent via the alerted set.
	for i := range ranked {
		item := ranked[i]
		if item.ImportanceScore < cfg.BreakingThreshold {
			continue
		}
		if _, already := alerted[item.ID]; already {
			continue
		}
		result.Intents = append(result.Intents, feed.NotificationIntent{
			Kind:      feed.IntentBreaking,
			CreatedAt: now,
			Items:     []feed.Item{item},
		})
		result.NewlyAlerted = append(result.NewlyAlerted, item.ID)
		result.Tracks[feed.IntentBreaking] = feed.TrackEmitted
	}

	// Daily digest: once per window, top-K of the items observed since
	// the previous digest. No fresh items means no digest; the boundary
	// stays put so a later cycle in the same window can still emit one.
	if digestStart := dailyWindowStart(now, cfg.DigestHourUTC); !digestStart.IsZero() {
		switch {
		case state.LastDigestAt.Before(digestStart):
			fresh := seenSince(ranked, state.LastDigestAt)
			if len(fresh) == 0 {
				break
			}
			result.Intents = append(result.Intents, feed.NotificationIntent{
				Kind:      feed.IntentDigest,
				CreatedAt: now,
				Items:     topK(fresh, cfg.DigestTopK),
			})
			result.State.LastDigestAt = now
			result.Tracks[feed.IntentDigest] = feed.TrackEmitted
		default:
			result.Tracks[feed.IntentDigest] = alreadyEmittedState(state.LastDigestAt, digestStart)
		}
	}

	// Weekly summary: aggregates, not raw items.
	if weekStart := weeklyWindowStart(now, cfg.WeeklyWeekday, cfg.WeeklyHourUTC); !weekStart.IsZero() {
		switch {
		case state.LastWeeklyAt.Before(weekStart):
			analytics := ComputeWeeklyAnalytics(ranked)
			result.Intents = append(result.Intents, feed.NotificationIntent{
				Kind:      feed.IntentWeekly,
				CreatedAt: now,
				Analytics: &analytics,
			})
			result.State.LastWeeklyAt = now
			result.Tracks[feed.IntentWeekly] = feed.TrackEmitted
		default:
			result.Tracks[feed.IntentWeekly] = alreadyEmittedState(state.LastWeeklyAt, weekStart)
		}
	}

	return result
}

// dailyWindowStart returns the opening of today's digest window, or the
// zero time when the window has not opened yet.
func dailyWindowStart(now time.Time, hourUTC int) time.Time {
	utc := now.UTC()
	start := time.Date(utc.Year(), utc.Month(), utc.Day(), hourUTC, 0, 0, 0, time.UTC)
	if utc.Before(start) {
		return time.Time{}
	}
	return start
}

// weeklyWindowStart returns the opening of the current week's summary
// window, or the zero time when it has not opened yet this week.
func weeklyWindowStart(now time.Time, weekday, hourUTC int) time.Time {
	utc := now.UTC()
	daysSince := (int(utc.Weekday()) - weekday + 7) % 7
	day := utc.AddDate(0, 0, -daysSince)
	start := time.Date(day.Year(), day.Month(), day.Day(), hourUTC, 0, 0, 0, time.UTC)
	if utc.Before(start) {
		return time.Time{}
	}
	return start
}

func alreadyEmittedState(lastAt, windowStart time.Time) feed.TrackState {
	if !lastAt.Before(windowStart) {
		return feed.TrackEmitted
	}
	return feed.TrackIdle
}

// seenSince keeps items observed after the boundary, preserving rank
// order. A zero boundary keeps everything that was ever observed.
func seenSince(ranked []feed.Item, boundary time.Time) []feed.Item {
	out := make([]feed.Item, 0, len(ranked))
	for i := range ranked {
		if ranked[i].LastSeenAt.After(boundary) {
			out = append(out, ranked[i])
		}
	}
	return out
}

func topK(ranked []feed.Item, k int) []feed.Item {
	if k <= 0 || k > len(ranked) {
		k = len(ranked)
	}
	top := make([]feed.Item, k)
	copy(top, ranked[:k])
	return top
}

// ComputeWeeklyAnalytics aggregates the active set into the weekly
// summary payload.
func ComputeWeeklyAnalytics(items []feed.Item) feed.WeeklyAnalytics {
	analytics := feed.WeeklyAnalytics{
		ItemCount:          len(items),
		SourceDistribution: make(map[string]int, 8),
	}
	if len(items) == 0 {
		return analytics
	}

	var scoreSum float64
	keywordCounts := make(map[string]int, 16)
	for i := range items {
		it := &items[i]
		scoreSum += it.ImportanceScore
		analytics.SourceDistribution[it.SourceName]++
		for _, kw := range it.Keywords {
			keywordCounts[kw]++
		}
	}
	analytics.AverageScore = scoreSum / float64(len(items))

	analytics.TopKeywords = make([]feed.KeywordCount, 0, len(keywordCounts))
	for kw, count := range keywordCounts {
		analytics.TopKeywords = append(analytics.TopKeywords, feed.KeywordCount{Keyword: kw, Count: count})
	}
	sort.Slice(analytics.TopKeywords, func(a, b int) bool {
		if analytics.TopKeywords[a].Count != analytics.TopKeywords[b].Count {
			return analytics.TopKeywords[a].Count > analytics.TopKeywords[b].Count
		}
		return analytics.TopKeywords[a].Keyword < analytics.TopKeywords[b].Keyword
	})
	if len(analytics.TopKeywords) > 10 {
		analytics.TopKeywords = analytics.TopKeywords[:10]
	}
	return analytics
}
