package pipeline

import (
	"testing"
	"time"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
)

func triggerConfig() TriggerConfig {
	return TriggerConfig{
		BreakingThreshold: 0.75,
		DigestHourUTC:     9,
		DigestTopK:        10,
		WeeklyWeekday:     1, // Monday
		WeeklyHourUTC:     9,
	}
}

func scoredItem(id string, score float64) feed.Item {
	return feed.Item{ID: id, Title: "item " + id, ImportanceScore: score}
}

func seenItem(id string, score float64, seenAt time.Time) feed.Item {
	item := scoredItem(id, score)
	item.LastSeenAt = seenAt
	return item
}

func TestBreakingIntentAboveThreshold(t *testing.T) {
	// Tuesday, before the digest hour so only the breaking track fires.
	now := time.Date(2026, time.August, 25, 8, 0, 0, 0, time.UTC)
	ranked := []feed.Item{
		scoredItem("hot", 0.87),
		scoredItem("warm", 0.60),
	}
	state := feed.NotificationState{
		LastDigestAt: now.Add(-time.Hour),
		LastWeeklyAt: now.Add(-time.Hour),
	}

	result := EvaluateTriggers(ranked, state, map[string]struct{}{}, triggerConfig(), now)

	if len(result.Intents) != 1 {
		t.Fatalf("expected exactly one intent, got %d", len(result.Intents))
	}
	intent := result.Intents[0]
	if intent.Kind != feed.IntentBreaking {
		t.Fatalf("expected breaking intent, got %s", intent.Kind)
	}
	if len(intent.Items) != 1 || intent.Items[0].ID != "hot" {
		t.Fatalf("wrong breaking payload: %+v", intent.Items)
	}
	if len(result.NewlyAlerted) != 1 || result.NewlyAlerted[0] != "hot" {
		t.Fatalf("expected hot in newly alerted, got %v", result.NewlyAlerted)
	}
	if result.Tracks[feed.IntentBreaking] != feed.TrackEmitted {
		t.Fatalf("breaking track state = %s", result.Tracks[feed.IntentBreaking])
	}
}

func TestBreakingIntentIdempotent(t *testing.T) {
	now := time.Date(2026, time.August, 25, 8, 0, 0, 0, time.UTC)
	ranked := []feed.Item{scoredItem("hot", 0.87)}
	state := feed.NotificationState{
		LastDigestAt: now.Add(-time.Hour),
		LastWeeklyAt: now.Add(-time.Hour),
	}

	first := EvaluateTriggers(ranked, state, map[string]struct{}{}, triggerConfig(), now)
	if len(first.Intents) != 1 {
		t.Fatalf("first evaluation: expected 1 intent, got %d", len(first.Intents))
	}

	alerted := map[string]struct{}{"hot": {}}
	second := EvaluateTriggers(ranked, state, alerted, triggerConfig(), now.Add(time.Minute))
	if len(second.Intents) != 0 {
		t.Fatalf("second evaluation must not re-alert, got %d intents", len(second.Intents))
	}
}

func TestDigestOncePerWindow(t *testing.T) {
	cfg := triggerConfig()
	cfg.DigestTopK = 2
	// Tuesday 10:00, digest window opened at 09:00.
	now := time.Date(2026, time.August, 25, 10, 0, 0, 0, time.UTC)
	ranked := []feed.Item{
		seenItem("a", 0.7, now.Add(-time.Hour)),
		seenItem("b", 0.6, now.Add(-time.Hour)),
		seenItem("c", 0.5, now.Add(-time.Hour)),
	}
	state := feed.NotificationState{
		LastDigestAt: now.Add(-24 * time.Hour),
		LastWeeklyAt: now,
	}

	result := EvaluateTriggers(ranked, state, map[string]struct{}{}, cfg, now)

	var digest *feed.NotificationIntent
	for i := range result.Intents {
		if result.Intents[i].Kind == feed.IntentDigest {
			digest = &result.Intents[i]
		}
	}
	if digest == nil {
		t.Fatalf("expected a digest intent")
	}
	if len(digest.Items) != 2 {
		t.Fatalf("expected top-2 payload, got %d items", len(digest.Items))
	}
	if digest.Items[0].ID != "a" {
		t.Fatalf("digest not ranked: %+v", digest.Items)
	}
	if !result.State.LastDigestAt.Equal(now) {
		t.Fatalf("digest boundary not advanced: %v", result.State.LastDigestAt)
	}

	// Same window, state already advanced: no second digest.
	again := EvaluateTriggers(ranked, result.State, map[string]struct{}{}, cfg, now.Add(time.Hour))
	for _, intent := range again.Intents {
		if intent.Kind == feed.IntentDigest {
			t.Fatalf("digest emitted twice in one window")
		}
	}
	if again.Tracks[feed.IntentDigest] != feed.TrackEmitted {
		t.Fatalf("digest track should report emitted, got %s", again.Tracks[feed.IntentDigest])
	}
}

func TestDigestOnlyCarriesItemsSeenSinceLastDigest(t *testing.T) {
	cfg := triggerConfig()
	// Tuesday 10:00; yesterday's digest went out at 09:30.
	now := time.Date(2026, time.August, 25, 10, 0, 0, 0, time.UTC)
	lastDigest := now.Add(-24*time.Hour - 30*time.Minute)
	ranked := []feed.Item{
		seenItem("stale", 0.9, lastDigest.Add(-time.Hour)),
		seenItem("fresh", 0.6, now.Add(-time.Hour)),
	}
	state := feed.NotificationState{
		LastDigestAt: lastDigest,
		LastWeeklyAt: now,
	}

	result := EvaluateTriggers(ranked, state, map[string]struct{}{"stale": {}, "fresh": {}}, cfg, now)

	var digest *feed.NotificationIntent
	for i := range result.Intents {
		if result.Intents[i].Kind == feed.IntentDigest {
			digest = &result.Intents[i]
		}
	}
	if digest == nil {
		t.Fatalf("expected a digest intent")
	}
	if len(digest.Items) != 1 || digest.Items[0].ID != "fresh" {
		t.Fatalf("digest should only carry items seen after the previous digest, got %+v", digest.Items)
	}

	// Nothing new since the previous digest: no empty digest, and the
	// boundary stays where it was.
	none := EvaluateTriggers(
		[]feed.Item{seenItem("stale", 0.9, lastDigest.Add(-time.Hour))},
		state, map[string]struct{}{"stale": {}}, cfg, now,
	)
	for _, intent := range none.Intents {
		if intent.Kind == feed.IntentDigest {
			t.Fatalf("digest emitted with no fresh items")
		}
	}
	if !none.State.LastDigestAt.Equal(state.LastDigestAt) {
		t.Fatalf("digest boundary moved without an emission: %v", none.State.LastDigestAt)
	}
}

func TestDigestBeforeWindowStaysIdle(t *testing.T) {
	// Tuesday 08:00, window opens at 09:00.
	now := time.Date(2026, time.August, 25, 8, 0, 0, 0, time.UTC)
	state := feed.NotificationState{
		LastDigestAt: now.Add(-24 * time.Hour),
		LastWeeklyAt: now,
	}

	result := EvaluateTriggers(nil, state, map[string]struct{}{}, triggerConfig(), now)
	for _, intent := range result.Intents {
		if intent.Kind == feed.IntentDigest {
			t.Fatalf("digest emitted before its window opened")
		}
	}
	if result.Tracks[feed.IntentDigest] != feed.TrackIdle {
		t.Fatalf("digest track = %s, want idle", result.Tracks[feed.IntentDigest])
	}
}

func TestWeeklySummaryAnalytics(t *testing.T) {
	// Monday 2026-08-31 10:00 UTC, weekly window opened at 09:00.
	now := time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC)
	if now.Weekday() != time.Monday {
		t.Fatalf("test date must be a Monday, got %s", now.Weekday())
	}

	ranked := []feed.Item{
		{ID: "a", SourceName: "alpha", ImportanceScore: 0.8, Keywords: []string{"llm", "benchmark"}},
		{ID: "b", SourceName: "alpha", ImportanceScore: 0.6, Keywords: []string{"llm"}},
		{ID: "c", SourceName: "beta", ImportanceScore: 0.4},
	}
	state := feed.NotificationState{
		LastDigestAt: now,
		LastWeeklyAt: now.Add(-7 * 24 * time.Hour),
	}

	result := EvaluateTriggers(ranked, state, map[string]struct{}{}, triggerConfig(), now)

	var weekly *feed.NotificationIntent
	for i := range result.Intents {
		if result.Intents[i].Kind == feed.IntentWeekly {
			weekly = &result.Intents[i]
		}
	}
	if weekly == nil {
		t.Fatalf("expected a weekly intent")
	}
	if weekly.Analytics == nil {
		t.Fatalf("weekly intent missing analytics")
	}

	a := weekly.Analytics
	if a.ItemCount != 3 {
		t.Fatalf("item count = %d", a.ItemCount)
	}
	wantAvg := (0.8 + 0.6 + 0.4) / 3
	if diff := a.AverageScore - wantAvg; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("average score = %v, want %v", a.AverageScore, wantAvg)
	}
	if a.SourceDistribution["alpha"] != 2 || a.SourceDistribution["beta"] != 1 {
		t.Fatalf("source distribution = %v", a.SourceDistribution)
	}
	if len(a.TopKeywords) == 0 || a.TopKeywords[0].Keyword != "llm" || a.TopKeywords[0].Count != 2 {
		t.Fatalf("top keywords = %v", a.TopKeywords)
	}
	if !result.State.LastWeeklyAt.Equal(now) {
		t.Fatalf("weekly boundary not advanced: %v", result.State.LastWeeklyAt)
	}
}

func TestWeeklyNotDueMidweek(t *testing.T) {
	// Wednesday: this week's Monday-09:00 window opened two days ago, but
	// the summary already went out on Monday.
	now := time.Date(2026, time.August, 26, 10, 0, 0, 0, time.UTC)
	state := feed.NotificationState{
		LastDigestAt: now,
		LastWeeklyAt: time.Date(2026, time.August, 24, 9, 30, 0, 0, time.UTC),
	}

	result := EvaluateTriggers(nil, state, map[string]struct{}{}, triggerConfig(), now)
	for _, intent := range result.Intents {
		if intent.Kind == feed.IntentWeekly {
			t.Fatalf("weekly emitted twice in one week")
		}
	}
}
