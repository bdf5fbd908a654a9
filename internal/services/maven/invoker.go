// -----------------------------------------------------------------------
// Invoker - Runs Maven goals and OpenRewrite recipes against a plugin
// -----------------------------------------------------------------------

package maven

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/services/pom"
	"github.com/ternarybob/modernizer/internal/services/process"
)

const (
	rewritePlugin  = "org.openrewrite.maven:rewrite-maven-plugin"
	defaultTimeout = 30 * time.Minute
)

// Invoker implements interfaces.BuildInvoker by running mvn as a subprocess
type Invoker struct {
	config *common.MavenConfig
	runner process.Runner
	logger arbor.ILogger
}

// NewInvoker creates a new Maven invoker
func NewInvoker(config *common.MavenConfig, runner process.Runner, logger arbor.ILogger) *Invoker {
	return &Invoker{
		config: config,
		runner: runner,
		logger: logger,
	}
}

// Executable returns <home>/bin/<binary>, or the bare binary name resolved through PATH
func (m *Invoker) Executable() string {
	if m.config.Home == "" {
		return m.config.Binary
	}
	return filepath.Join(m.config.Home, "bin", m.config.Binary)
}

// InvokeGoal runs the given goals in batch mode in the plugin's working copy
func (m *Invoker) InvokeGoal(ctx context.Context, plugin *models.Plugin, goals ...string) error {
	if len(goals) == 0 {
		return fmt.Errorf("no goal given")
	}
	return m.run(ctx, plugin, goals)
}

// InvokeTransformation runs an OpenRewrite recipe through the rewrite-maven-plugin
func (m *Invoker) InvokeTransformation(ctx context.Context, plugin *models.Plugin, recipe *models.Recipe) error {
	if recipe == nil {
		return fmt.Errorf("no recipe given")
	}
	args := []string{
		fmt.Sprintf("%s:%s:run", rewritePlugin, m.config.RewritePluginVersion),
		"-Drewrite.activeRecipes=" + recipe.Name,
		"-Drewrite.exportDatatables=true",
	}
	if m.config.RecipeArtifact != "" {
		args = append(args, "-Drewrite.recipeArtifactCoordinates="+m.config.RecipeArtifact)
	}
	return m.run(ctx, plugin, args)
}

// AddRelativePathIfMissing inserts <relativePath/> under <parent> so the build never
// resolves the parent from the file system. Runs at most once per plugin per run.
func (m *Invoker) AddRelativePathIfMissing(ctx context.Context, plugin *models.Plugin) error {
	if plugin.RelativePathEnsured {
		return nil
	}

	doc, err := pom.Load(plugin.PomPath())
	if err != nil {
		return err
	}
	if doc.EnsurePathReferenceUnderParent() {
		if err := doc.Save(plugin.PomPath()); err != nil {
			return err
		}
		m.logger.Debug().Str("plugin", plugin.Name).Msg("Added relativePath to parent")
	}
	plugin.RelativePathEnsured = true
	return nil
}

func (m *Invoker) run(ctx context.Context, plugin *models.Plugin, goals []string) error {
	args := []string{"-B", "-ntp", "-e"}
	if m.config.Offline {
		args = append(args, "-o")
	}
	args = append(args, m.config.ExtraArgs...)
	args = append(args, goals...)

	cmd := process.Command{
		Name:    m.Executable(),
		Args:    args,
		Dir:     plugin.LocalRepository,
		Timeout: common.Duration(m.config.Timeout, defaultTimeout),
	}
	if m.config.Home != "" {
		cmd.Env = []string{"MAVEN_HOME=" + m.config.Home}
	}

	m.logger.Info().
		Str("plugin", plugin.Name).
		Strs("goals", goals).
		Msg("Invoking Maven")

	result, err := m.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("maven %v failed for %s: %w", goals, plugin.Name, err)
	}

	m.logger.Debug().
		Str("plugin", plugin.Name).
		Str("elapsed", result.Duration.String()).
		Msg("Maven invocation finished")
	return nil
}
