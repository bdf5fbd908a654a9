package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/app"
	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/services/recipes"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles      configPaths // Multiple -config flags supported
	plugins          = flag.String("plugins", "", "Comma separated plugin names")
	pluginsP         = flag.String("p", "", "Comma separated plugin names (shorthand)")
	pluginFile       = flag.String("plugin-file", "", "File with one plugin per line")
	recipe           = flag.String("recipe", "", "Recipe to apply, with or without the catalog prefix")
	recipeR          = flag.String("r", "", "Recipe to apply (shorthand)")
	listRecipes      = flag.Bool("list-recipes", false, "List available recipes and exit")
	dryRun           = flag.Bool("dry-run", false, "Apply and commit locally, never push or open pull requests")
	skipPush         = flag.Bool("skip-push", false, "Do not push changes to the fork")
	skipBuild        = flag.Bool("skip-build", false, "Do not compile or verify after the recipe")
	skipVerification = flag.Bool("skip-verification", false, "Compile but do not verify")
	skipPullRequest  = flag.Bool("skip-pull-request", false, "Push without opening a pull request")
	draft            = flag.Bool("draft", false, "Open pull requests as drafts")
	metadataOnly     = flag.Bool("metadata-only", false, "Only collect metadata, never fork, change or push")
	cleanLocalData   = flag.Bool("clean-local-data", false, "Remove working copies before and after each plugin")
	cleanForks       = flag.Bool("clean-forks", false, "Delete forks without an open pull request after the run")
	cachePath        = flag.String("cache-path", "", "Cache root (overrides config)")
	mavenHome        = flag.String("maven-home", "", "Maven installation (overrides config)")
	githubOwner      = flag.String("github-owner", "", "Owner of the forks (overrides config)")
	workers          = flag.Int("workers", 0, "Plugins processed in parallel (overrides config)")
	schedule         = flag.Bool("schedule", false, "Repeat the batch on the configured cron schedule")
	history          = flag.Int("history", 0, "Print the most recent run records and exit")
	debug            = flag.Bool("debug", false, "Enable debug logging")
	showVersion      = flag.Bool("version", false, "Print version information")
	showVersionV     = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Plugin Modernizer version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("modernizer.toml"); err == nil {
			configFiles = append(configFiles, "modernizer.toml")
		}
	}

	// 1. Load configuration (defaults -> file1 -> file2 -> ... -> env)
	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	// 2. Apply command-line flag overrides (highest priority)
	common.ApplyFlagOverrides(config, common.FlagOverrides{
		Plugins:          splitPlugins(firstNonEmpty(*pluginsP, *plugins)),
		PluginFile:       *pluginFile,
		Recipe:           firstNonEmpty(*recipeR, *recipe),
		DryRun:           *dryRun,
		MetadataOnly:     *metadataOnly,
		SkipPush:         *skipPush,
		SkipBuild:        *skipBuild,
		SkipVerification: *skipVerification,
		SkipPullRequest:  *skipPullRequest,
		Draft:            *draft,
		CleanLocalData:   *cleanLocalData,
		CleanForks:       *cleanForks,
		CachePath:        *cachePath,
		MavenHome:        *mavenHome,
		GitHubOwner:      *githubOwner,
		Workers:          *workers,
		Debug:            *debug,
		Schedule:         *schedule,
	})
	config.Normalize()

	// 3. Initialize logger with final configuration
	logger = common.InitLogger(config)

	if err := config.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	if *listRecipes {
		printRecipes()
		return
	}

	// 4. Print banner with configuration and logger
	common.PrintBanner(config, logger)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("github_api", config.GitHub.APIURL).
		Str("update_center", config.UpdateCenter.URL).
		Str("maven_home", config.Maven.Home).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Msg("Resolved configuration (sanitized)")

	os.Exit(run())
}

// run executes the requested mode and returns the process exit code
func run() int {
	application, err := app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return 1
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *history > 0 {
		return printHistory(ctx, application, *history)
	}

	if _, err := application.PruneHistory(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to prune run history")
	}

	names, err := resolvePlugins()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read plugin list")
		return 1
	}
	if len(names) == 0 {
		logger.Error().Msg("No plugins given, use -plugins or -plugin-file")
		return 2
	}

	if config.Scheduler.Enabled {
		if err := application.StartScheduler(ctx, names); err != nil {
			logger.Error().Err(err).Msg("Failed to start scheduler")
			return 1
		}
		logger.Info().
			Str("schedule", config.Scheduler.Schedule).
			Int("plugins", len(names)).
			Msg("Scheduler running - Press Ctrl+C to stop")
		<-ctx.Done()
		logger.Info().Msg("Interrupt signal received")
		return 0
	}

	summary, err := application.Run(ctx, names)
	if err != nil {
		logger.Error().Err(err).Msg("Modernization run failed")
		return 1
	}
	summary.Print(os.Stdout)

	if summary.Failed() {
		return 1
	}
	return 0
}

func resolvePlugins() ([]string, error) {
	var fromFile []string
	if config.Run.PluginFile != "" {
		var err error
		fromFile, err = common.ReadPluginFile(config.Run.PluginFile)
		if err != nil {
			return nil, err
		}
	}
	return common.MergePlugins(config.Run.Plugins, fromFile), nil
}

func printRecipes() {
	catalog, err := recipes.NewCatalog(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load recipe catalog")
	}
	for _, r := range catalog.All() {
		fmt.Printf("%-45s %s\n", r.ShortName(), r.Description)
	}
}

func printHistory(ctx context.Context, application *app.App, limit int) int {
	records, err := application.History(ctx, "", limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read run history")
		return 1
	}
	for _, r := range records {
		fmt.Printf("%s  %-30s %-10s %-40s %s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.Plugin,
			r.Status,
			r.Recipe,
			r.Duration().Round(time.Second))
		for _, e := range r.Errors {
			fmt.Printf("    %s\n", e)
		}
	}
	return 0
}

func splitPlugins(value string) []string {
	var out []string
	for _, name := range strings.Split(value, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
