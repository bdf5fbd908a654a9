// -----------------------------------------------------------------------
// Engine - Applies a recipe to a plugin working copy
// -----------------------------------------------------------------------

package transform

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/services/pom"
)

// ChangeLister reports uncommitted changes of a working copy
type ChangeLister interface {
	ChangedFiles(ctx context.Context, plugin *models.Plugin) ([]models.FileChange, error)
}

// Engine implements interfaces.TransformationEngine. Recipes with a native
// implementation edit pom.xml directly; all others run through OpenRewrite.
type Engine struct {
	invoker interfaces.BuildInvoker
	changes ChangeLister
	logger  arbor.ILogger
}

// NewEngine creates a new transformation engine
func NewEngine(invoker interfaces.BuildInvoker, changes ChangeLister, logger arbor.ILogger) *Engine {
	return &Engine{
		invoker: invoker,
		changes: changes,
		logger:  logger,
	}
}

// IsNative reports whether the recipe is applied without the build tool
func IsNative(recipe *models.Recipe) bool {
	_, ok := nativeRecipes[recipe.ShortName()]
	return ok
}

// Apply runs the recipe and reports the files it changed
func (e *Engine) Apply(ctx context.Context, recipe *models.Recipe, plugin *models.Plugin) (*models.ChangeReport, error) {
	if native, ok := nativeRecipes[recipe.ShortName()]; ok {
		if err := e.applyNative(native, recipe, plugin); err != nil {
			return nil, err
		}
	} else {
		if err := e.invoker.AddRelativePathIfMissing(ctx, plugin); err != nil {
			return nil, fmt.Errorf("failed to prepare descriptor: %w", err)
		}
		if err := e.invoker.InvokeTransformation(ctx, plugin, recipe); err != nil {
			return nil, err
		}
	}

	files, err := e.changes.ChangedFiles(ctx, plugin)
	if err != nil {
		return nil, fmt.Errorf("failed to list changed files: %w", err)
	}

	report := &models.ChangeReport{Files: files}
	e.logger.Info().
		Str("plugin", plugin.Name).
		Str("recipe", recipe.ShortName()).
		Int("files", len(files)).
		Msg("Recipe applied")
	return report, nil
}

func (e *Engine) applyNative(native nativeRecipe, recipe *models.Recipe, plugin *models.Plugin) error {
	doc, err := pom.Load(plugin.PomPath())
	if err != nil {
		return err
	}
	if err := native(doc, recipe.Options); err != nil {
		return fmt.Errorf("recipe %s: %w", recipe.ShortName(), err)
	}
	if !doc.Modified() {
		e.logger.Debug().Str("plugin", plugin.Name).Str("recipe", recipe.ShortName()).Msg("Descriptor unchanged")
		return nil
	}
	return doc.Save(plugin.PomPath())
}
