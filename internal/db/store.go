package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
	"github.com/raphaelschols/ai-intel-hub/internal/globaltime"
)

// Store implements the coordinator's persistence surface plus the read
// queries the HTTP API serves.
type Store struct {
	pool *Pool
}

func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// ActiveItems returns items last seen within the window, most recent
// first.
func (s *Store) ActiveItems(ctx context.Context, window time.Duration) ([]feed.Item, error) {
	var records []ItemRecord
	q := s.pool.GORM().WithContext(ctx).Order("last_seen_at DESC")
	if window > 0 {
		cutoff := globaltime.UTC().Add(-window)
		q = q.Where("last_seen_at >= ?", cutoff)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query active items: %w", err)
	}

	items := make([]feed.Item, 0, len(records))
	for i := range records {
		item, err := recordToItem(&records[i])
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// UpsertItem inserts or fully replaces one item by id.
func (s *Store) UpsertItem(ctx context.Context, item feed.Item) error {
	record, err := itemToRecord(item)
	if err != nil {
		return err
	}
	err = s.pool.GORM().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", item.ID, err)
	}
	return nil
}

// AlertedSet returns every item id an alert was ever attempted for.
// Failed attempts stay in the set so the same item is not re-alerted.
func (s *Store) AlertedSet(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := s.pool.GORM().WithContext(ctx).Model(&AlertRecord{}).Pluck("item_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("query alerted set: %w", err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// MarkAlerted records an alert attempt. The first write wins; a later
// attempt for the same item only updates the status.
func (s *Store) MarkAlerted(ctx context.Context, itemID, status string, at time.Time) error {
	record := AlertRecord{ItemID: itemID, Status: status, AlertedAt: at.UTC()}
	err := s.pool.GORM().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status"}),
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("mark alerted %s: %w", itemID, err)
	}
	return nil
}

// NotificationState loads the single persisted state row; a missing row
// means zero boundaries.
func (s *Store) NotificationState(ctx context.Context) (feed.NotificationState, error) {
	var record NotificationStateRecord
	err := s.pool.GORM().WithContext(ctx).First(&record, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return feed.NotificationState{}, nil
	}
	if err != nil {
		return feed.NotificationState{}, fmt.Errorf("query notification state: %w", err)
	}

	var state feed.NotificationState
	if record.LastDigestAt != nil {
		state.LastDigestAt = record.LastDigestAt.UTC()
	}
	if record.LastWeeklyAt != nil {
		state.LastWeeklyAt = record.LastWeeklyAt.UTC()
	}
	return state, nil
}

// SaveNotificationState upserts the single state row.
func (s *Store) SaveNotificationState(ctx context.Context, state feed.NotificationState) error {
	record := NotificationStateRecord{ID: 1, UpdatedAt: globaltime.UTC()}
	if !state.LastDigestAt.IsZero() {
		t := state.LastDigestAt.UTC()
		record.LastDigestAt = &t
	}
	if !state.LastWeeklyAt.IsZero() {
		t := state.LastWeeklyAt.UTC()
		record.LastWeeklyAt = &t
	}

	err := s.pool.GORM().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("save notification state: %w", err)
	}
	return nil
}

// InsertRun records one cycle report.
func (s *Store) InsertRun(ctx context.Context, report feed.CollectionReport) error {
	record := CollectionRunRecord{
		BatchID:        report.BatchID,
		StartedAt:      report.StartedAt.UTC(),
		FinishedAt:     report.FinishedAt.UTC(),
		Failed:         report.Failed,
		Fetched:        report.Fetched,
		Normalized:     report.Normalized,
		Skipped:        report.Skipped,
		Duplicates:     report.Duplicates,
		Inserted:       report.Inserted,
		Updated:        report.Updated,
		UpsertFailures: report.UpsertFailures,
	}
	if len(report.SourceFailures) > 0 {
		payload, err := json.Marshal(report.SourceFailures)
		if err != nil {
			return fmt.Errorf("encode source failures: %w", err)
		}
		record.SourceFailures = payload
	}

	if err := s.pool.GORM().WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("insert collection run: %w", err)
	}
	return nil
}

// ItemFilter narrows the API item listing.
type ItemFilter struct {
	Category string
	Source   string
	MinScore float64
	Limit    int
}

// ListItems serves the API: ranked items, best scores first.
func (s *Store) ListItems(ctx context.Context, filter ItemFilter) ([]feed.Item, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.pool.GORM().WithContext(ctx).
		Order("importance_score DESC, first_seen_at ASC, id ASC").
		Limit(limit)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Source != "" {
		q = q.Where("source_name = ?", filter.Source)
	}
	if filter.MinScore > 0 {
		q = q.Where("importance_score >= ?", filter.MinScore)
	}

	var records []ItemRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	items := make([]feed.Item, 0, len(records))
	for i := range records {
		item, err := recordToItem(&records[i])
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ListRuns serves the API: recent cycle reports, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]feed.CollectionReport, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var records []CollectionRunRecord
	err := s.pool.GORM().WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query collection runs: %w", err)
	}

	reports := make([]feed.CollectionReport, 0, len(records))
	for _, record := range records {
		report := feed.CollectionReport{
			BatchID:        record.BatchID,
			StartedAt:      record.StartedAt,
			FinishedAt:     record.FinishedAt,
			Failed:         record.Failed,
			Fetched:        record.Fetched,
			Normalized:     record.Normalized,
			Skipped:        record.Skipped,
			Duplicates:     record.Duplicates,
			Inserted:       record.Inserted,
			Updated:        record.Updated,
			UpsertFailures: record.UpsertFailures,
		}
		if len(record.SourceFailures) > 0 {
			if err := json.Unmarshal(record.SourceFailures, &report.SourceFailures); err != nil {
				return nil, fmt.Errorf("decode source failures for run %s: %w", record.BatchID, err)
			}
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Stats aggregates store-wide counters for the stats endpoint.
type Stats struct {
	TotalItems      int64            `json:"total_items"`
	ActiveItems     int64            `json:"active_items"`
	TotalRuns       int64            `json:"total_runs"`
	AlertsSent      int64            `json:"alerts_sent"`
	AlertsFailed    int64            `json:"alerts_failed"`
	ItemsByCategory map[string]int64 `json:"items_by_category"`
}

func (s *Store) Stats(ctx context.Context, activeWindow time.Duration) (Stats, error) {
	stats := Stats{ItemsByCategory: make(map[string]int64)}
	gdb := s.pool.GORM().WithContext(ctx)

	if err := gdb.Model(&ItemRecord{}).Count(&stats.TotalItems).Error; err != nil {
		return Stats{}, fmt.Errorf("count items: %w", err)
	}
	if activeWindow > 0 {
		cutoff := globaltime.UTC().Add(-activeWindow)
		err := gdb.Model(&ItemRecord{}).Where("last_seen_at >= ?", cutoff).Count(&stats.ActiveItems).Error
		if err != nil {
			return Stats{}, fmt.Errorf("count active items: %w", err)
		}
	}
	if err := gdb.Model(&CollectionRunRecord{}).Count(&stats.TotalRuns).Error; err != nil {
		return Stats{}, fmt.Errorf("count runs: %w", err)
	}
	if err := gdb.Model(&AlertRecord{}).Where("status = ?", "sent").Count(&stats.AlertsSent).Error; err != nil {
		return Stats{}, fmt.Errorf("count sent alerts: %w", err)
	}
	if err := gdb.Model(&AlertRecord{}).Where("status = ?", "failed").Count(&stats.AlertsFailed).Error; err != nil {
		return Stats{}, fmt.Errorf("count failed alerts: %w", err)
	}

	type categoryCount struct {
		Category string
		Count    int64
	}
	var byCategory []categoryCount
	err := gdb.Model(&ItemRecord{}).
		Select("category, count(*) as count").
		Group("category").
		Scan(&byCategory).Error
	if err != nil {
		return Stats{}, fmt.Errorf("count items by category: %w", err)
	}
	for _, row := range byCategory {
		stats.ItemsByCategory[row.Category] = row.Count
	}
	return stats, nil
}

func itemToRecord(item feed.Item) (ItemRecord, error) {
	keywords, err := json.Marshal(item.Keywords)
	if err != nil {
		return ItemRecord{}, fmt.Errorf("encode keywords: %w", err)
	}
	sources, err := json.Marshal(item.Sources)
	if err != nil {
		return ItemRecord{}, fmt.Errorf("encode sources: %w", err)
	}
	return ItemRecord{
		ID:              item.ID,
		Title:           item.Title,
		SourceName:      item.SourceName,
		Category:        item.Category,
		PublishedAt:     item.PublishedAt.UTC(),
		URL:             item.URL,
		CitationCount:   item.CitationCount,
		ReportsCitation: item.ReportsCitation,
		Keywords:        keywords,
		RawText:         item.RawText,
		Engagement:      item.Engagement,
		ImportanceScore: item.ImportanceScore,
		FirstSeenAt:     item.FirstSeenAt.UTC(),
		LastSeenAt:      item.LastSeenAt.UTC(),
		BatchID:         item.BatchID,
		Observations:    item.Observations,
		Sources:         sources,
	}, nil
}

func recordToItem(record *ItemRecord) (feed.Item, error) {
	item := feed.Item{
		ID:              record.ID,
		Title:           record.Title,
		SourceName:      record.SourceName,
		Category:        record.Category,
		PublishedAt:     record.PublishedAt,
		URL:             record.URL,
		CitationCount:   record.CitationCount,
		ReportsCitation: record.ReportsCitation,
		RawText:         record.RawText,
		Engagement:      record.Engagement,
		ImportanceScore: record.ImportanceScore,
		FirstSeenAt:     record.FirstSeenAt,
		LastSeenAt:      record.LastSeenAt,
		BatchID:         record.BatchID,
		Observations:    record.Observations,
	}
	if len(record.Keywords) > 0 {
		if err := json.Unmarshal(record.Keywords, &item.Keywords); err != nil {
			return feed.Item{}, fmt.Errorf("decode keywords for item %s: %w", record.ID, err)
		}
	}
	if len(record.Sources) > 0 {
		if err := json.Unmarshal(record.Sources, &item.Sources); err != nil {
			return feed.Item{}, fmt.Errorf("decode sources for item %s: %w", record.ID, err)
		}
	}
	return item, nil
}
