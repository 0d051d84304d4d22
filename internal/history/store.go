package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-damage-sync/internal/analytics"
	"go-damage-sync/internal/cache"
	apperrors "go-damage-sync/internal/errors"
	"go-damage-sync/internal/logger"
	"go-damage-sync/internal/observer"
	"go-damage-sync/internal/repository"
	"go-damage-sync/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const statsCacheKey = "dashboard_stats"

// Store owns the canonical per-user record list. Mutations are local-first:
// the in-memory list is updated immediately and durable-store failures
// degrade to local-only records with a warning instead of lost writes. The
// list observed by any reader is always sorted newest-first.
type Store struct {
	userID     string
	records    repository.RecordStore
	aggregator *analytics.Aggregator
	stats      *cache.Cache[models.AggregatedStats]
	events     *observer.Publisher
	now        func() time.Time

	mu       sync.RWMutex
	snapshot []models.AnalysisRecord
	loaded   bool
}

func NewStore(userID string, records repository.RecordStore, aggregator *analytics.Aggregator, events *observer.Publisher) *Store {
	s := &Store{
		userID:     userID,
		records:    records,
		aggregator: aggregator,
		events:     events,
		now:        time.Now,
	}
	s.stats = cache.New(func() models.AggregatedStats {
		return aggregator.Compute(nil, s.now())
	})
	return s
}

// Add persists the record through the durable store and appends it to the
// in-memory list. On a durable-write failure the record is still appended,
// tagged LocalOnly, and a non-fatal persistence error is returned alongside
// the record so the caller can surface a warning. Local state never
// silently diverges.
func (s *Store) Add(ctx context.Context, record models.AnalysisRecord) (models.AnalysisRecord, error) {
	record.UserID = s.userID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}

	var warn error
	id, err := s.records.Create(ctx, s.userID, record)
	if err != nil {
		record.ID = "local-" + uuid.NewString()
		record.LocalOnly = true
		warn = apperrors.NewPersistenceError("record kept locally, durable write failed", err)

		s.events.Notify(ctx, observer.Event{
			Type:         observer.RecordPersistFailed,
			UserID:       s.userID,
			RecordID:     record.ID,
			ErrorMessage: err.Error(),
		})
		logger.WithError(err).WithFields(logrus.Fields{
			"user_id":   s.userID,
			"record_id": record.ID,
		}).Warn("Durable write failed, keeping record locally")
	} else {
		record.ID = id
		s.events.Notify(ctx, observer.Event{
			Type:     observer.RecordPersisted,
			UserID:   s.userID,
			RecordID: id,
			Success:  true,
		})
	}

	s.mu.Lock()
	s.snapshot = append(s.snapshot, record)
	s.sortLocked()
	s.mu.Unlock()
	s.stats.Invalidate(statsCacheKey)

	return record, warn
}

// Remove deletes the record locally and from the durable store. Local-only
// records have nothing durable to delete.
func (s *Store) Remove(ctx context.Context, recordID string) error {
	s.mu.Lock()
	localOnly := false
	for i, rec := range s.snapshot {
		if rec.ID == recordID {
			localOnly = rec.LocalOnly
			s.snapshot = append(s.snapshot[:i], s.snapshot[i+1:]...)
			break
		}
	}
	s.sortLocked()
	s.mu.Unlock()
	s.stats.Invalidate(statsCacheKey)

	if localOnly {
		return nil
	}
	if err := s.records.Delete(ctx, s.userID, recordID); err != nil {
		return apperrors.NewPersistenceError("failed to delete record", err)
	}
	return nil
}

// Clear removes every record for the user.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
	s.stats.Invalidate(statsCacheKey)

	if err := s.records.DeleteAll(ctx, s.userID); err != nil {
		return apperrors.NewPersistenceError("failed to clear records", err)
	}
	return nil
}

// Load fetches the durable list and replaces the in-memory snapshot. On
// failure it returns the last successfully loaded snapshot rather than an
// empty list or an error. force bypasses nothing here beyond requesting a
// fresh fetch; Load never coalesces since the list is the source of truth
// for mutations.
func (s *Store) Load(ctx context.Context, force bool) []models.AnalysisRecord {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()

	if loaded && !force {
		return s.List()
	}

	fetched, err := s.records.List(ctx, s.userID, 0)
	if err != nil {
		logger.WithError(err).WithField("user_id", s.userID).
			Warn("History load failed, serving last snapshot")
		return s.List()
	}

	s.mu.Lock()
	// Keep local-only records that the durable store knows nothing about.
	for _, rec := range s.snapshot {
		if rec.LocalOnly {
			fetched = append(fetched, rec)
		}
	}
	s.snapshot = fetched
	s.loaded = true
	s.sortLocked()
	s.mu.Unlock()

	return s.List()
}

// List returns a copy of the current snapshot, newest first.
func (s *Store) List() []models.AnalysisRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AnalysisRecord, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// Stats computes dashboard statistics over the record list. Concurrent
// callers share one computation through the request cache; force refreshes
// both the list and the derived stats.
func (s *Store) Stats(ctx context.Context, force bool) models.AggregatedStats {
	return s.stats.Get(ctx, statsCacheKey, force, func(ctx context.Context) (models.AggregatedStats, error) {
		records := s.Load(ctx, force)
		return s.aggregator.Compute(records, s.now()), nil
	})
}

// sortLocked keeps the ordering invariant: newest first, stable for equal
// timestamps. Callers hold mu.
func (s *Store) sortLocked() {
	sort.SliceStable(s.snapshot, func(i, j int) bool {
		return s.snapshot[i].CreatedAt.After(s.snapshot[j].CreatedAt)
	})
}
