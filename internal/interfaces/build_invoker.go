package interfaces

import (
	"context"

	"github.com/ternarybob/modernizer/internal/models"
)

// BuildInvoker runs the external build tool against a plugin's local descriptor
type BuildInvoker interface {
	InvokeGoal(ctx context.Context, plugin *models.Plugin, goals ...string) error
	InvokeTransformation(ctx context.Context, plugin *models.Plugin, recipe *models.Recipe) error

	// AddRelativePathIfMissing inserts an empty relativePath under the parent block; idempotent
	AddRelativePathIfMissing(ctx context.Context, plugin *models.Plugin) error
}
