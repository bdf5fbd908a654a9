// -----------------------------------------------------------------------
// VCS - Remote repository and working copy operations
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/modernizer/internal/models"
)

// ErrNotFound is returned when a remote resource does not exist
var ErrNotFound = errors.New("not found")

// VCSService performs every remote repository and working copy operation for a plugin.
// All methods block until the underlying network call or git process completes.
type VCSService interface {
	// Fetch clones the upstream repository into the plugin's local repository,
	// or fetches and resets an existing working copy to the default branch
	Fetch(ctx context.Context, plugin *models.Plugin) error

	Fork(ctx context.Context, plugin *models.Plugin) error
	IsForked(ctx context.Context, plugin *models.Plugin) (bool, error)
	DeleteFork(ctx context.Context, plugin *models.Plugin) error
	IsArchived(ctx context.Context, plugin *models.Plugin) (bool, error)

	// Sync brings the fork's default branch up to date with upstream
	Sync(ctx context.Context, plugin *models.Plugin) error

	CheckoutBranch(ctx context.Context, plugin *models.Plugin, branch string) error

	// CommitChanges stages everything and commits; returns false when the tree was clean
	CommitChanges(ctx context.Context, plugin *models.Plugin, message string) (bool, error)
	PushChanges(ctx context.Context, plugin *models.Plugin, branch string) error

	// OpenPullRequest returns the html url of the created (or already open) pull request
	OpenPullRequest(ctx context.Context, plugin *models.Plugin, pr models.PullRequest) (string, error)
	HasOpenPullRequest(ctx context.Context, plugin *models.Plugin, branch string) (bool, error)

	GetRepository(ctx context.Context, plugin *models.Plugin) (*models.Repository, error)
	GetRepositoryFork(ctx context.Context, plugin *models.Plugin) (*models.Repository, error)

	// ChangedFiles reports uncommitted per-file line counts of the working copy
	ChangedFiles(ctx context.Context, plugin *models.Plugin) ([]models.FileChange, error)
}
