// -----------------------------------------------------------------------
// Modernizer - Per-plugin pipeline and batch runner
// -----------------------------------------------------------------------

package modernizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/services/flags"
	"github.com/ternarybob/modernizer/internal/services/metadata"
	"github.com/ternarybob/modernizer/internal/services/workers"
	"github.com/ternarybob/modernizer/internal/storage/cache"
)

const (
	compileGoal = "compile"
	verifyGoal  = "verify"
)

// Modernizer drives every plugin of a batch through the pipeline phases
type Modernizer struct {
	config    *common.RunConfig
	recipe    *models.Recipe
	store     *cache.Store
	vcs       interfaces.VCSService
	builder   interfaces.BuildInvoker
	engine    interfaces.TransformationEngine
	collector interfaces.MetadataCollector
	checker   interfaces.PreconditionChecker
	registry  *flags.Registry
	facts     interfaces.PluginFacts
	runs      interfaces.RunStorage
	logger    arbor.ILogger
	phases    []phase
}

// NewModernizer creates a modernizer applying recipe. runs may be nil to disable run history.
func NewModernizer(
	config *common.RunConfig,
	recipe *models.Recipe,
	store *cache.Store,
	vcs interfaces.VCSService,
	builder interfaces.BuildInvoker,
	engine interfaces.TransformationEngine,
	collector interfaces.MetadataCollector,
	checker interfaces.PreconditionChecker,
	registry *flags.Registry,
	facts interfaces.PluginFacts,
	runs interfaces.RunStorage,
	logger arbor.ILogger,
) *Modernizer {
	m := &Modernizer{
		config:    config,
		recipe:    recipe,
		store:     store,
		vcs:       vcs,
		builder:   builder,
		engine:    engine,
		collector: collector,
		checker:   checker,
		registry:  registry,
		facts:     facts,
		runs:      runs,
		logger:    logger,
	}
	m.phases = m.buildPhases()
	return m
}

// Recipe returns the recipe applied by this modernizer
func (m *Modernizer) Recipe() *models.Recipe {
	return m.recipe
}

// Branch returns the branch changes are committed to
func (m *Modernizer) Branch() string {
	return m.config.BranchPrefix + "/" + m.recipe.ShortName()
}

// Start runs the pipeline for every named plugin on the worker pool. A plugin
// failure never stops the batch. Cancelling ctx stops plugins that have not
// started yet; running pipelines finish.
func (m *Modernizer) Start(ctx context.Context, names []string) (*Summary, error) {
	if len(names) == 0 {
		return nil, errors.New("no plugins to modernize")
	}

	summary := &Summary{
		RunID:     uuid.New().String(),
		Recipe:    m.recipe.Name,
		StartedAt: time.Now(),
	}
	runLogger := m.logger.WithCorrelationId(summary.RunID)

	runLogger.Info().
		Str("recipe", m.recipe.Name).
		Int("plugins", len(names)).
		Int("workers", m.config.Workers).
		Bool("dry_run", m.config.DryRun).
		Bool("metadata_only", m.config.MetadataOnly).
		Msg("Starting modernization run")

	plugins := make([]*models.Plugin, 0, len(names))
	pipelines := make(map[string]*pipeline, len(names))

	pool := workers.NewPool(ctx, m.config.Workers, runLogger)
	pool.Start()

	for _, name := range names {
		plugin := models.NewPlugin(name, m.store.Root())
		p := &pipeline{plugin: plugin, logger: m.logger.WithCorrelationId(plugin.Name)}
		plugins = append(plugins, plugin)
		pipelines[plugin.Name] = p

		if err := pool.Submit(plugin.Name, func(jobCtx context.Context) error {
			m.process(jobCtx, summary.RunID, p)
			return nil
		}); err != nil {
			runLogger.Warn().Str("plugin", plugin.Name).Err(err).Msg("Plugin not submitted")
		}
	}

	pool.Wait()

	for _, name := range pool.Skipped() {
		if p, ok := pipelines[name]; ok {
			p.plugin.Skip("run cancelled before the plugin started")
		}
	}

	for _, plugin := range plugins {
		p := pipelines[plugin.Name]
		summary.Results = append(summary.Results, resultOf(plugin, p.changedFiles(), p.duration))
	}
	summary.FinishedAt = time.Now()

	return summary, nil
}

// process runs the phases in order and stops at the first failure, skip or
// precondition error. Bookkeeping always runs.
func (m *Modernizer) process(ctx context.Context, runID string, p *pipeline) {
	p.started = time.Now()
	plugin := p.plugin

	p.logger.Info().Str("plugin", plugin.Name).Str("recipe", m.recipe.Name).Msg("Processing plugin")

	for _, ph := range m.phases {
		if ph.skip != nil {
			if reason := ph.skip(p); reason != "" {
				p.logger.Debug().Str("phase", ph.name).Str("reason", reason).Msg("Phase skipped")
				continue
			}
		}

		p.logger.Debug().Str("phase", ph.name).Msg("Phase started")
		if err := ph.run(ctx, p); err != nil {
			plugin.AddError(fmt.Sprintf("%s failed", ph.name), err)
			p.logger.Error().Str("phase", ph.name).Err(err).Msg("Phase failed")
			break
		}

		if plugin.Skipped || plugin.HasPreconditionErrors() {
			p.logger.Info().
				Str("phase", ph.name).
				Str("reason", plugin.SkipReason).
				Int("precondition_errors", len(plugin.PreconditionErrors)).
				Msg("Plugin not processed further")
			break
		}
	}

	m.finish(ctx, runID, p)
	p.duration = time.Since(p.started)

	p.logger.Info().
		Str("plugin", plugin.Name).
		Str("status", string(plugin.Status())).
		Str("elapsed", p.duration.String()).
		Msg("Plugin finished")
}

// finish persists the modernization summary and run record, then cleans up
func (m *Modernizer) finish(ctx context.Context, runID string, p *pipeline) {
	plugin := p.plugin

	if p.report != nil {
		if err := m.writeModernizationSummary(ctx, p); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to write modernization summary")
		}
	}

	if m.config.CleanForks && !m.config.MetadataOnly && p.fetched {
		m.deleteForkWithoutPullRequest(ctx, p)
	}

	if m.config.CleanLocalData {
		if err := os.RemoveAll(plugin.LocalRepository); err != nil {
			p.logger.Warn().Err(err).Str("path", plugin.LocalRepository).Msg("Failed to remove local data")
		}
	}

	if m.runs == nil {
		return
	}

	errs := plugin.AllErrors()
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Error())
	}
	record := &models.RunRecord{
		ID:           uuid.New().String(),
		RunID:        runID,
		Plugin:       plugin.Name,
		Recipe:       m.recipe.Name,
		Status:       plugin.Status(),
		Errors:       messages,
		DryRun:       m.config.DryRun,
		MetadataOnly: m.config.MetadataOnly,
		StartedAt:    p.started,
		FinishedAt:   time.Now(),
	}
	if err := m.runs.SaveRun(ctx, record); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to save run record")
	}
}

func (m *Modernizer) writeModernizationSummary(ctx context.Context, p *pipeline) error {
	plugin := p.plugin
	summary := models.ModernizationSummary{
		PluginName:            plugin.Name,
		PluginRepository:      plugin.RepositoryName,
		MigrationName:         m.recipe.DisplayName,
		MigrationDescription:  m.recipe.Description,
		Tags:                  m.recipe.Tags,
		MigrationID:           uuid.New().String(),
		RemovedDeprecatedAPIs: p.report.RemovedDeprecatedAPIs,
		PullRequestURL:        plugin.PullRequestURL,
	}
	if plugin.Metadata != nil {
		summary.RpuBaseline = plugin.Metadata.JenkinsVersion
		if plugin.Metadata.PluginName != "" {
			summary.PluginName = plugin.Metadata.PluginName
		}
	}
	for _, f := range p.report.Files {
		summary.ChangedFiles = append(summary.ChangedFiles, f.Path)
	}

	if m.facts != nil {
		version, err := m.facts.LatestVersion(ctx, plugin.Name)
		if err != nil {
			p.logger.Debug().Err(err).Msg("Latest released version unavailable")
		}
		summary.PluginVersion = version
	}

	return m.store.Put(plugin.Name, models.ModernizationKey, summary)
}

func (m *Modernizer) deleteForkWithoutPullRequest(ctx context.Context, p *pipeline) {
	plugin := p.plugin

	open, err := m.vcs.HasOpenPullRequest(ctx, plugin, m.Branch())
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to check for open pull request, keeping fork")
		return
	}
	if open {
		return
	}

	forked, err := m.vcs.IsForked(ctx, plugin)
	if err != nil || !forked {
		return
	}
	if err := m.vcs.DeleteFork(ctx, plugin); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to delete fork")
		return
	}
	p.logger.Info().Str("plugin", plugin.Name).Msg("Fork deleted")
}

// loadOrCollectMetadata reuses the cached metadata while the files it was derived from are unchanged
func (m *Modernizer) loadOrCollectMetadata(ctx context.Context, p *pipeline) (*models.Metadata, error) {
	plugin := p.plugin

	checksum, err := metadata.Checksum(plugin.LocalRepository)
	if err == nil && checksum != "" {
		cached, cacheErr := cache.Load[models.Metadata](m.store, plugin.Name, models.MetadataKey)
		if cacheErr == nil && cached.DescriptorChecksum == checksum {
			p.logger.Debug().Str("checksum", checksum).Msg("Reusing cached metadata")
			return cached, nil
		}
	}

	return m.collector.Collect(ctx, plugin)
}
