package interfaces

import (
	"context"

	"github.com/ternarybob/modernizer/internal/models"
)

// TransformationEngine applies a recipe to a plugin's working copy.
// A nil error with an empty report means the recipe made no changes.
type TransformationEngine interface {
	Apply(ctx context.Context, recipe *models.Recipe, plugin *models.Plugin) (*models.ChangeReport, error)
}

// DependencyResolver produces the descriptor of a plugin with its resolution marker attached
type DependencyResolver interface {
	Resolve(ctx context.Context, plugin *models.Plugin) (*models.Descriptor, error)
}

// MetadataCollector extracts and persists metadata for a plugin. An unresolved
// descriptor yields nil metadata without an error.
type MetadataCollector interface {
	Collect(ctx context.Context, plugin *models.Plugin) (*models.Metadata, error)
}

// PreconditionChecker decides whether a recipe can be applied given extracted metadata
type PreconditionChecker interface {
	CheckPrecondition(recipe *models.Recipe, metadata *models.Metadata) (bool, error)
}
