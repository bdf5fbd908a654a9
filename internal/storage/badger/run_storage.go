package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RunStorage implements interfaces.RunStorage for Badger
type RunStorage struct {
	db     *HistoryDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *HistoryDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(ctx context.Context, record *models.RunRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	var record models.RunRecord
	if err := s.db.Store().Get(id, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("run %s: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &record, nil
}

func (s *RunStorage) ListRunsByPlugin(ctx context.Context, plugin string, limit int) ([]*models.RunRecord, error) {
	var records []models.RunRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Plugin").Eq(plugin)); err != nil {
		return nil, fmt.Errorf("failed to list runs for plugin %s: %w", plugin, err)
	}
	return newestFirst(records, limit), nil
}

func (s *RunStorage) ListRunsByBatch(ctx context.Context, runID string) ([]*models.RunRecord, error) {
	var records []models.RunRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("RunID").Eq(runID)); err != nil {
		return nil, fmt.Errorf("failed to list runs for batch %s: %w", runID, err)
	}
	result := newestFirst(records, 0)
	sort.SliceStable(result, func(i, j int) bool { return result[i].Plugin < result[j].Plugin })
	return result, nil
}

func (s *RunStorage) ListRecentRuns(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	var records []models.RunRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return newestFirst(records, limit), nil
}

// DeleteRunsBefore removes every record started before the cutoff and returns how many were removed
func (s *RunStorage) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var records []models.RunRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return 0, fmt.Errorf("failed to list runs: %w", err)
	}

	deleted := 0
	for _, r := range records {
		if !r.StartedAt.Before(cutoff) {
			continue
		}
		if err := s.db.Store().Delete(r.ID, models.RunRecord{}); err != nil {
			return deleted, fmt.Errorf("failed to delete run %s: %w", r.ID, err)
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Debug().Int("deleted", deleted).Str("cutoff", cutoff.Format(time.RFC3339)).Msg("Old run records deleted")
	}
	return deleted, nil
}

// newestFirst orders by start time descending and truncates to limit when positive
func newestFirst(records []models.RunRecord, limit int) []*models.RunRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	result := make([]*models.RunRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result
}
