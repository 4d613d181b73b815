package db

import (
	"encoding/json"
	"time"
)

// ItemRecord maps the canonical items table.
type ItemRecord struct {
	ID              string          `gorm:"column:id;type:text;primaryKey"`
	Title           string          `gorm:"column:title;type:text;not null"`
	SourceName      string          `gorm:"column:source_name;type:text;not null;index"`
	Category        string          `gorm:"column:category;type:text;not null;index"`
	PublishedAt     time.Time       `gorm:"column:published_at;type:timestamptz;not null"`
	URL             string          `gorm:"column:url;type:text;not null"`
	CitationCount   int             `gorm:"column:citation_count;type:integer;not null;default:0"`
	ReportsCitation bool            `gorm:"column:reports_citation;type:boolean;not null;default:false"`
	Keywords        json.RawMessage `gorm:"column:keywords;type:jsonb"`
	RawText         string          `gorm:"column:raw_text;type:text;not null;default:''"`
	Engagement      *float64        `gorm:"column:engagement;type:double precision"`
	ImportanceScore float64         `gorm:"column:importance_score;type:double precision;not null;default:0"`
	FirstSeenAt     time.Time       `gorm:"column:first_seen_at;type:timestamptz;not null"`
	LastSeenAt      time.Time       `gorm:"column:last_seen_at;type:timestamptz;not null;index"`
	BatchID         string          `gorm:"column:batch_id;type:uuid;not null"`
	Observations    int             `gorm:"column:observations;type:integer;not null;default:1"`
	Sources         json.RawMessage `gorm:"column:sources;type:jsonb"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (ItemRecord) TableName() string { return "items" }

// AlertRecord maps the alerted set. One row per alert attempt outcome,
// keyed by item id so re-alerts are impossible.
type AlertRecord struct {
	ItemID    string    `gorm:"column:item_id;type:text;primaryKey"`
	Status    string    `gorm:"column:status;type:text;not null"`
	AlertedAt time.Time `gorm:"column:alerted_at;type:timestamptz;not null"`
}

func (AlertRecord) TableName() string { return "alerts" }

// NotificationStateRecord is a single-row table carrying the digest and
// weekly period boundaries.
type NotificationStateRecord struct {
	ID           int        `gorm:"column:id;primaryKey"`
	LastDigestAt *time.Time `gorm:"column:last_digest_at;type:timestamptz"`
	LastWeeklyAt *time.Time `gorm:"column:last_weekly_at;type:timestamptz"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (NotificationStateRecord) TableName() string { return "notification_state" }

// CollectionRunRecord maps the per-cycle report history.
type CollectionRunRecord struct {
	BatchID        string          `gorm:"column:batch_id;type:uuid;primaryKey"`
	StartedAt      time.Time       `gorm:"column:started_at;type:timestamptz;not null;index"`
	FinishedAt     time.Time       `gorm:"column:finished_at;type:timestamptz;not null"`
	Failed         bool            `gorm:"column:failed;type:boolean;not null;default:false"`
	Fetched        int             `gorm:"column:fetched;type:integer;not null;default:0"`
	Normalized     int             `gorm:"column:normalized;type:integer;not null;default:0"`
	Skipped        int             `gorm:"column:skipped;type:integer;not null;default:0"`
	Duplicates     int             `gorm:"column:duplicates;type:integer;not null;default:0"`
	Inserted       int             `gorm:"column:inserted;type:integer;not null;default:0"`
	Updated        int             `gorm:"column:updated;type:integer;not null;default:0"`
	UpsertFailures int             `gorm:"column:upsert_failures;type:integer;not null;default:0"`
	SourceFailures json.RawMessage `gorm:"column:source_failures;type:jsonb"`
	CreatedAt      time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (CollectionRunRecord) TableName() string { return "collection_runs" }

func autoMigrateModels() []any {
	return []any{
		&ItemRecord{},
		&AlertRecord{},
		&NotificationStateRecord{},
		&CollectionRunRecord{},
	}
}
