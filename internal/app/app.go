package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/connectors/github"
	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/services/flags"
	"github.com/ternarybob/modernizer/internal/services/maven"
	"github.com/ternarybob/modernizer/internal/services/metadata"
	"github.com/ternarybob/modernizer/internal/services/modernizer"
	"github.com/ternarybob/modernizer/internal/services/process"
	"github.com/ternarybob/modernizer/internal/services/recipes"
	"github.com/ternarybob/modernizer/internal/services/resolver"
	"github.com/ternarybob/modernizer/internal/services/scheduler"
	"github.com/ternarybob/modernizer/internal/services/transform"
	"github.com/ternarybob/modernizer/internal/services/updatecenter"
	"github.com/ternarybob/modernizer/internal/storage/badger"
	"github.com/ternarybob/modernizer/internal/storage/cache"
)

const (
	// ModernizeJob is the scheduler job running a batch
	ModernizeJob = "modernize"
	// PruneHistoryJob is the scheduler job deleting expired run records
	PruneHistoryJob = "prune-run-history"

	pruneHistorySchedule = "30 2 * * *"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	Cache *cache.Store
	DB    *badger.HistoryDB
	Runs  interfaces.RunStorage // nil when run history is disabled

	// Collaborators
	Runner       *process.ExecRunner
	Maven        *maven.Invoker
	GitHub       *github.Connector
	UpdateCenter *updatecenter.Client
	Resolver     *resolver.Resolver
	Registry     *flags.Registry
	Collector    *metadata.Collector
	Engine       *transform.Engine
	Catalog      *recipes.Catalog

	Recipe           *models.Recipe
	Modernizer       *modernizer.Modernizer
	SchedulerService interfaces.SchedulerService
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info().
		Str("recipe", app.Recipe.Name).
		Str("cache", app.Cache.Root()).
		Bool("run_history", app.Runs != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage opens the cache and, when configured, the run history database
func (a *App) initStorage() error {
	a.Cache = cache.NewStore(a.Config.Cache.Path, a.Logger)

	if a.Config.Storage.Badger.Path == "" {
		a.Logger.Debug().Msg("Run history disabled")
		return nil
	}

	db, err := badger.OpenHistoryDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.DB = db
	a.Runs = badger.NewRunStorage(db, a.Logger)

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

func (a *App) initServices() error {
	var err error

	// 1. Recipe catalog and the recipe of this run
	a.Catalog, err = recipes.NewCatalog(a.Logger)
	if err != nil {
		return fmt.Errorf("failed to load recipe catalog: %w", err)
	}
	a.Recipe, err = a.Catalog.Lookup(a.Config.Run.Recipe)
	if err != nil {
		return err
	}

	// 2. External processes: git and mvn
	a.Runner = process.NewExecRunner(a.Logger, process.DefaultMaxOutput)
	a.Maven = maven.NewInvoker(&a.Config.Maven, a.Runner, a.Logger)

	// 3. Remote repositories
	a.GitHub, err = github.NewConnector(&a.Config.GitHub, a.Runner, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create github connector: %w", err)
	}

	// 4. Update center facts, cached next to the plugin data
	uc := a.Config.UpdateCenter
	a.UpdateCenter = updatecenter.NewClient(uc.URL, a.Logger,
		updatecenter.WithHTTPClient(&http.Client{Timeout: common.Duration(uc.Timeout, updatecenter.DefaultTimeout)}),
		updatecenter.WithRateLimit(uc.RequestsPerSecond),
		updatecenter.WithCache(a.Cache, common.Duration(uc.MaxAge, updatecenter.DefaultMaxAge)),
	)

	// 5. Metadata extraction
	a.Resolver = resolver.NewResolver(a.Logger)
	a.Registry = flags.NewDefaultRegistry(a.Logger)
	a.Collector = metadata.NewCollector(a.Resolver, a.Registry, a.Cache, a.Logger)

	// 6. Transformation
	a.Engine = transform.NewEngine(a.Maven, a.GitHub, a.Logger)

	// 7. Pipeline
	a.Modernizer = modernizer.NewModernizer(
		&a.Config.Run,
		a.Recipe,
		a.Cache,
		a.GitHub,
		a.Maven,
		a.Engine,
		a.Collector,
		a.Catalog,
		a.Registry,
		a.UpdateCenter,
		a.Runs,
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(a.Logger)

	return nil
}

// Run modernizes the plugins once and logs the summary
func (a *App) Run(ctx context.Context, plugins []string) (*modernizer.Summary, error) {
	summary, err := a.Modernizer.Start(ctx, plugins)
	if err != nil {
		return nil, err
	}
	summary.Log(a.Logger)
	return summary, nil
}

// StartScheduler registers the batch on the configured schedule and starts the scheduler.
// Run history is pruned daily when enabled.
func (a *App) StartScheduler(ctx context.Context, plugins []string) error {
	err := a.SchedulerService.RegisterJob(ModernizeJob, a.Config.Scheduler.Schedule,
		fmt.Sprintf("Apply %s to %d plugins", a.Recipe.ShortName(), len(plugins)),
		func(jobCtx context.Context) error {
			summary, err := a.Run(jobCtx, plugins)
			if err != nil {
				return err
			}
			if summary.Failed() {
				return fmt.Errorf("%d plugins failed", summary.Count(models.PluginStatusFailed))
			}
			return nil
		})
	if err != nil {
		return err
	}

	if a.Runs != nil && a.Config.Storage.Badger.RetentionDays > 0 {
		err := a.SchedulerService.RegisterJob(PruneHistoryJob, pruneHistorySchedule, "Delete expired run records",
			func(jobCtx context.Context) error {
				_, err := a.PruneHistory(jobCtx)
				return err
			})
		if err != nil {
			return err
		}
	}

	return a.SchedulerService.Start()
}

// PruneHistory deletes run records older than the retention period
func (a *App) PruneHistory(ctx context.Context) (int, error) {
	if a.Runs == nil || a.Config.Storage.Badger.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -a.Config.Storage.Badger.RetentionDays)
	deleted, err := a.Runs.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune run history: %w", err)
	}
	if deleted > 0 {
		a.Logger.Info().Int("deleted", deleted).Int("retention_days", a.Config.Storage.Badger.RetentionDays).Msg("Run history pruned")
	}
	return deleted, nil
}

// History returns the most recent run records, or those of one plugin
func (a *App) History(ctx context.Context, plugin string, limit int) ([]*models.RunRecord, error) {
	if a.Runs == nil {
		return nil, fmt.Errorf("run history is disabled")
	}
	if plugin != "" {
		return a.Runs.ListRunsByPlugin(ctx, plugin, limit)
	}
	return a.Runs.ListRecentRuns(ctx, limit)
}

// Close stops the scheduler and closes the database
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		a.Logger.Info().Msg("Database closed")
	}

	return nil
}
