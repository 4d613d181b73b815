package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
	"github.com/raphaelschols/ai-intel-hub/internal/retry"
	"github.com/raphaelschols/ai-intel-hub/internal/sources"
)

// ErrCycleInProgress is returned when a collection cycle is requested
// while another one is still running.
var ErrCycleInProgress = errors.New("collection cycle already in progress")

// Store is the persistence surface the coordinator needs. The db
// package provides the production implementation.
type Store interface {
	// ActiveItems returns stored items seen within the window.
	ActiveItems(ctx context.Context, window time.Duration) ([]feed.Item, error)

	// UpsertItem inserts or replaces one item by id.
	UpsertItem(ctx context.Context, item feed.Item) error

	// AlertedSet returns every item id an alert was attempted for,
	// regardless of dispatch outcome.
	AlertedSet(ctx context.Context) (map[string]struct{}, error)

	// MarkAlerted records an alert attempt with its dispatch status.
	MarkAlerted(ctx context.Context, itemID, status string, at time.Time) error

	// NotificationState loads the persisted trigger boundaries.
	NotificationState(ctx context.Context) (feed.NotificationState, error)

	// SaveNotificationState persists advanced trigger boundaries.
	SaveNotificationState(ctx context.Context, state feed.NotificationState) error

	// InsertRun records the cycle report for the runs API.
	InsertRun(ctx context.Context, report feed.CollectionReport) error
}

// Dispatcher sends a notification intent over some transport.
type Dispatcher interface {
	Send(ctx context.Context, intent feed.NotificationIntent) error
}

// Alert dispatch statuses persisted alongside the alerted set.
const (
	AlertStatusSent   = "sent"
	AlertStatusFailed = "failed"
)

// ServiceConfig bundles the cycle-level knobs.
type ServiceConfig struct {
	Normalize     NormalizeOptions
	Dedupe        DedupeOptions
	Rank          RankOptions
	Triggers      TriggerConfig
	ActiveWindow  time.Duration
	SourceTimeout time.Duration
	Retry         retry.Policy
}

// Service coordinates one collection cycle: fan-out fetch, normalize,
// dedupe, rank, persist, then trigger evaluation and dispatch.
type Service struct {
	adapters   []sources.Source
	store      Store
	dispatcher Dispatcher
	cfg        ServiceConfig
	log        zerolog.Logger

	// cycleMu enforces a single active cycle. Concurrent cycles would
	// race the read-merge-write sequence against the store.
	cycleMu sync.Mutex
	running bool
}

func NewService(adapters []sources.Source, store Store, dispatcher Dispatcher, cfg ServiceConfig, log zerolog.Logger) *Service {
	return &Service{
		adapters:   adapters,
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log,
	}
}

type fetchOutcome struct {
	source string
	config int
	items  []feed.RawItem
	err    error
}

// RunCycle executes one full collection cycle and returns the report
// plus the ranked active set. A second concurrent call fails fast with
// ErrCycleInProgress.
func (s *Service) RunCycle(ctx context.Context, now time.Time) (feed.CollectionReport, []feed.Item, error) {
	s.cycleMu.Lock()
	if s.running {
		s.cycleMu.Unlock()
		return feed.CollectionReport{}, nil, ErrCycleInProgress
	}
	s.running = true
	s.cycleMu.Unlock()
	defer func() {
		s.cycleMu.Lock()
		s.running = false
		s.cycleMu.Unlock()
	}()

	report := feed.CollectionReport{
		BatchID:        uuid.NewString(),
		StartedAt:      now,
		SourceFailures: make(map[string]string),
	}
	log := s.log.With().Str("batch_id", report.BatchID).Logger()
	log.Info().Int("sources", len(s.adapters)).Msg("collection cycle started")

	// Fan-out with per-source timeout and failure isolation.
	outcomes := s.fetchAll(ctx)

	batch := make([]feed.Item, 0, 64)
	for _, outcome := range outcomes {
		if outcome.err != nil {
			report.SourceFailures[outcome.source] = outcome.err.Error()
			log.Warn().Str("source", outcome.source).Err(outcome.err).Msg("source fetch failed")
			continue
		}
		report.Fetched += len(outcome.items)

		srcConfig := s.adapters[outcome.config].Config()
		for _, raw := range outcome.items {
			item, skip := Normalize(raw, srcConfig, s.cfg.Normalize, now, report.BatchID)
			if skip != SkipNone {
				report.Skipped++
				log.Debug().Str("source", outcome.source).Str("reason", string(skip)).Msg("raw item skipped")
				continue
			}
			report.Normalized++
			batch = append(batch, item)
		}
	}

	existing, err := s.store.ActiveItems(ctx, s.cfg.ActiveWindow)
	if err != nil {
		report.Failed = true
		report.FinishedAt = now
		s.recordRun(ctx, log, report)
		return report, nil, err
	}

	deduped := Dedupe(batch, existing, s.cfg.Dedupe)
	report.Duplicates = deduped.Duplicates

	// Rank over the full active set so batch-relative factors see
	// everything that competes for attention.
	active := make([]feed.Item, 0, len(existing)+len(deduped.Items))
	active = append(active, existing...)
	active = append(active, deduped.Items...)
	ranked := Rank(active, s.cfg.Rank, NewBatchContext(active, now))

	scores := make(map[string]float64, len(ranked))
	for i := range ranked {
		scores[ranked[i].ID] = ranked[i].ImportanceScore
	}

	inserted, updated, upsertFailures := s.persist(ctx, log, deduped, scores)
	report.Inserted = inserted
	report.Updated = updated
	report.UpsertFailures = upsertFailures

	// A majority of failed writes means the store is effectively down.
	attempted := len(deduped.Items) + len(deduped.UpdatedExisting)
	if attempted > 0 && upsertFailures*2 > attempted {
		report.Failed = true
	}

	report.FinishedAt = now
	s.recordRun(ctx, log, report)

	log.Info().
		Int("fetched", report.Fetched).
		Int("normalized", report.Normalized).
		Int("skipped", report.Skipped).
		Int("duplicates", report.Duplicates).
		Int("inserted", report.Inserted).
		Int("updated", report.Updated).
		Int("source_failures", report.FailureCount()).
		Bool("failed", report.Failed).
		Msg("collection cycle finished")

	if report.Failed {
		return report, ranked, errors.New("collection cycle failed: persistence majority failure")
	}
	return report, ranked, nil
}

func (s *Service) fetchAll(ctx context.Context) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(s.adapters))

	var wg sync.WaitGroup
	for i, adapter := range s.adapters {
		wg.Add(1)
		go func(i int, adapter sources.Source) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, s.sourceTimeout())
			defer cancel()

			var items []feed.RawItem
			err := retry.Do(fetchCtx, s.cfg.Retry, func(ctx context.Context) error {
				fetched, err := adapter.Fetch(ctx)
				if err != nil {
					return err
				}
				items = fetched
				return nil
			})
			outcomes[i] = fetchOutcome{source: adapter.Name(), config: i, items: items, err: err}
		}(i, adapter)
	}
	wg.Wait()
	return outcomes
}

func (s *Service) sourceTimeout() time.Duration {
	if s.cfg.SourceTimeout > 0 {
		return s.cfg.SourceTimeout
	}
	return 30 * time.Second
}

// persist writes per item with retry so one bad record cannot sink the
// rest of the batch.
func (s *Service) persist(ctx context.Context, log zerolog.Logger, deduped DedupeResult, scores map[string]float64) (inserted, updated, failures int) {
	for _, item := range deduped.Items {
		item.ImportanceScore = scores[item.ID]
		if err := s.upsertWithRetry(ctx, item); err != nil {
			failures++
			log.Error().Str("item_id", item.ID).Err(err).Msg("item insert failed")
			continue
		}
		inserted++
	}
	for _, item := range deduped.UpdatedExisting {
		item.ImportanceScore = scores[item.ID]
		if err := s.upsertWithRetry(ctx, item); err != nil {
			failures++
			log.Error().Str("item_id", item.ID).Err(err).Msg("item update failed")
			continue
		}
		updated++
	}
	return inserted, updated, failures
}

func (s *Service) upsertWithRetry(ctx context.Context, item feed.Item) error {
	return retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		return s.store.UpsertItem(ctx, item)
	})
}

func (s *Service) recordRun(ctx context.Context, log zerolog.Logger, report feed.CollectionReport) {
	err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		return s.store.InsertRun(ctx, report)
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to record collection run")
	}
}

// EvaluateAndDispatch loads trigger state, evaluates the three tracks
// over the ranked set, dispatches each intent with retry, and persists
// the advanced state. Dispatch failures are recorded, never retried
// into the next cycle for the same item.
func (s *Service) EvaluateAndDispatch(ctx context.Context, ranked []feed.Item, now time.Time) ([]feed.NotificationIntent, error) {
	state, err := s.store.NotificationState(ctx)
	if err != nil {
		return nil, err
	}
	alerted, err := s.store.AlertedSet(ctx)
	if err != nil {
		return nil, err
	}

	result := EvaluateTriggers(ranked, state, alerted, s.cfg.Triggers, now)

	for _, intent := range result.Intents {
		status := AlertStatusSent
		err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
			return s.dispatcher.Send(ctx, intent)
		})
		if err != nil {
			status = AlertStatusFailed
			s.log.Error().Str("kind", string(intent.Kind)).Err(err).Msg("notification dispatch failed")
		} else {
			s.log.Info().Str("kind", string(intent.Kind)).Int("items", len(intent.Items)).Msg("notification dispatched")
		}

		if intent.Kind == feed.IntentBreaking {
			for _, item := range intent.Items {
				markErr := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
					return s.store.MarkAlerted(ctx, item.ID, status, now)
				})
				if markErr != nil {
					s.log.Error().Str("item_id", item.ID).Err(markErr).Msg("failed to mark item alerted")
				}
			}
		}
	}

	if result.State != state {
		err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
			return s.store.SaveNotificationState(ctx, result.State)
		})
		if err != nil {
			return result.Intents, err
		}
	}
	return result.Intents, nil
}
