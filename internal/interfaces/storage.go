// -----------------------------------------------------------------------
// Storage - Persistence of batch run history
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/modernizer/internal/models"
)

// RunStorage persists one record per plugin per batch run
type RunStorage interface {
	SaveRun(ctx context.Context, record *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRunsByPlugin(ctx context.Context, plugin string, limit int) ([]*models.RunRecord, error)
	ListRunsByBatch(ctx context.Context, runID string) ([]*models.RunRecord, error)
	ListRecentRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error)
}
