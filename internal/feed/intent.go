package feed

import "time"

// IntentKind names the three notification tracks.
type IntentKind string

const (
	IntentBreaking IntentKind = "breaking"
	IntentDigest   IntentKind = "digest"
	IntentWeekly   IntentKind = "weekly"
)

// NotificationIntent is a decision to notify; dispatch transport is the
// caller's concern.
type NotificationIntent struct {
	Kind      IntentKind
	CreatedAt time.Time

	// Items carries the breaking item or the digest top-K.
	Items []Item

	// Analytics is set for weekly summaries only.
	Analytics *WeeklyAnalytics
}

// WeeklyAnalytics aggregates the week's collection instead of raw items.
type WeeklyAnalytics struct {
	ItemCount          int            `json:"item_count"`
	AverageScore       float64        `json:"average_score"`
	SourceDistribution map[string]int `json:"source_distribution"`
	TopKeywords        []KeywordCount `json:"top_keywords"`
}

// KeywordCount pairs a keyword with its occurrence count across items.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// NotificationState is the persisted trigger bookkeeping. The alerted
// set lives in its own store table; these are the period boundaries.
type NotificationState struct {
	LastDigestAt time.Time
	LastWeeklyAt time.Time
}

// TrackState is the per-track trigger phase. A track whose window is
// open emits in the same evaluation, so only the resting phases are
// ever observable.
type TrackState string

const (
	TrackIdle    TrackState = "idle"
	TrackEmitted TrackState = "emitted"
)
