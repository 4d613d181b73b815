package feed

import "time"

// CollectionReport summarizes one collection cycle.
type CollectionReport struct {
	BatchID    string            `json:"batch_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Failed     bool              `json:"failed"`

	Fetched        int `json:"fetched"`
	Normalized     int `json:"normalized"`
	Skipped        int `json:"skipped"`
	Duplicates     int `json:"duplicates"`
	Inserted       int `json:"inserted"`
	Updated        int `json:"updated"`
	UpsertFailures int `json:"upsert_failures"`

	// SourceFailures maps source name to the failure description for
	// adapters that errored or timed out this cycle.
	SourceFailures map[string]string `json:"source_failures,omitempty"`
}

// FailureCount reports how many sources failed during the cycle.
func (r CollectionReport) FailureCount() int {
	return len(r.SourceFailures)
}
