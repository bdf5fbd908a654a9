package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// CacheSubdir is appended to CACHE_DIR and to the user cache directory
const CacheSubdir = "jenkins-plugin-modernizer-cli"

const (
	DefaultGitHubAPIURL    = "https://api.github.com"
	DefaultUpdateCenterURL = "https://updates.jenkins.io/current/update-center.actual.json"
	DefaultRecipe          = "io.jenkins.tools.pluginmodernizer.FetchMetadata"
)

// Config represents the application configuration
type Config struct {
	Environment  string             `toml:"environment"`
	GitHub       GitHubConfig       `toml:"github"`
	Cache        CacheConfig        `toml:"cache"`
	Maven        MavenConfig        `toml:"maven"`
	Run          RunConfig          `toml:"run"`
	UpdateCenter UpdateCenterConfig `toml:"update_center"`
	Storage      StorageConfig      `toml:"storage"`
	Logging      LoggingConfig      `toml:"logging"`
	Scheduler    SchedulerConfig    `toml:"scheduler"`
}

type GitHubConfig struct {
	Token             string `toml:"token"`                                      // Falls back to GH_TOKEN / GITHUB_TOKEN
	Owner             string `toml:"owner"`                                      // Owner of the forks; defaults to the token's user
	APIURL            string `toml:"api_url" validate:"required,url"`            // REST endpoint, override for GitHub Enterprise
	UpstreamOwner     string `toml:"upstream_owner" validate:"required"`         // Organization hosting the plugins
	RequestsPerSecond int    `toml:"requests_per_second" validate:"gte=1"`       // Client side pacing of API calls
	CommitterName     string `toml:"committer_name"`                             // git user.name for commits
	CommitterEmail    string `toml:"committer_email" validate:"omitempty,email"` // git user.email for commits
	ForkWait          string `toml:"fork_wait"`                                  // How long to wait for an asynchronous fork
}

type CacheConfig struct {
	Path string `toml:"path" validate:"required"` // Root of the per-plugin cache and working copies
}

type MavenConfig struct {
	Home                 string   `toml:"home"`                                       // MAVEN_HOME; empty uses mvn from PATH
	Binary               string   `toml:"binary" validate:"required"`                 // Executable name under <home>/bin
	RewritePluginVersion string   `toml:"rewrite_plugin_version" validate:"required"` // rewrite-maven-plugin version used for recipes
	RecipeArtifact       string   `toml:"recipe_artifact"`                            // Extra recipe artifact coordinates
	Offline              bool     `toml:"offline"`                                    // Pass -o to every invocation
	ExtraArgs            []string `toml:"extra_args"`                                 // Appended to every invocation
	Timeout              string   `toml:"timeout"`                                    // Per invocation timeout, e.g. "30m"
}

type RunConfig struct {
	Plugins          []string `toml:"plugins"`
	PluginFile       string   `toml:"plugin_file"`
	Recipe           string   `toml:"recipe" validate:"required"`
	DryRun           bool     `toml:"dry_run"`
	MetadataOnly     bool     `toml:"metadata_only"`
	SkipPush         bool     `toml:"skip_push"`
	SkipBuild        bool     `toml:"skip_build"`
	SkipVerification bool     `toml:"skip_verification"`
	SkipPullRequest  bool     `toml:"skip_pull_request"`
	Draft            bool     `toml:"draft"`
	CleanLocalData   bool     `toml:"clean_local_data"` // Remove the working copy before and after the run
	CleanForks       bool     `toml:"clean_forks"`      // Delete forks without an open pull request after the run
	Workers          int      `toml:"workers" validate:"gte=1,lte=64"`
	BranchPrefix     string   `toml:"branch_prefix" validate:"required"`
}

type UpdateCenterConfig struct {
	URL               string `toml:"url" validate:"required,url"`
	RequestsPerSecond int    `toml:"requests_per_second" validate:"gte=1"`
	Timeout           string `toml:"timeout"`
	MaxAge            string `toml:"max_age"` // Reuse the cached snapshot while younger than this
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory; empty disables run history
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	RetentionDays  int    `toml:"retention_days" validate:"gte=0"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`                                             // "stdout", "file"
	TimeFormat string   `toml:"time_format"`
}

type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format, 5 fields
}

// NewDefaultConfig returns the configuration used when no file, env or flag overrides apply
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		GitHub: GitHubConfig{
			APIURL:            DefaultGitHubAPIURL,
			UpstreamOwner:     "jenkinsci",
			RequestsPerSecond: 5,
			CommitterName:     "plugin-modernizer",
			ForkWait:          "30s",
		},
		Cache: CacheConfig{
			Path: defaultCachePath(),
		},
		Maven: MavenConfig{
			Binary:               "mvn",
			RewritePluginVersion: "5.46.1",
			Timeout:              "30m",
		},
		Run: RunConfig{
			Recipe:       DefaultRecipe,
			Workers:      1,
			BranchPrefix: "plugin-modernizer",
		},
		UpdateCenter: UpdateCenterConfig{
			URL:               DefaultUpdateCenterURL,
			RequestsPerSecond: 2,
			Timeout:           "60s",
			MaxAge:            "1h",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:          "./data",
				RetentionDays: 30,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 3 * * *",
		},
	}
}

// defaultCachePath resolves <user cache dir>/jenkins-plugin-modernizer-cli
func defaultCachePath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, CacheSubdir)
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied by the caller afterwards.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MODERNIZER_ENV"); env != "" {
		config.Environment = env
	}

	// GitHub: MODERNIZER_* first, then the variables the gh CLI and actions use
	if token := firstEnv("MODERNIZER_GITHUB_TOKEN", "GH_TOKEN", "GITHUB_TOKEN"); token != "" {
		config.GitHub.Token = token
	}
	if owner := firstEnv("MODERNIZER_GITHUB_OWNER", "GH_OWNER"); owner != "" {
		config.GitHub.Owner = owner
	}
	if apiURL := os.Getenv("MODERNIZER_GITHUB_API_URL"); apiURL != "" {
		config.GitHub.APIURL = apiURL
	}

	// Cache: CACHE_DIR is a base directory, the tool keeps its own subdirectory
	if path := os.Getenv("MODERNIZER_CACHE_PATH"); path != "" {
		config.Cache.Path = path
	} else if dir := os.Getenv("CACHE_DIR"); dir != "" {
		config.Cache.Path = filepath.Join(dir, CacheSubdir)
	}

	if home := firstEnv("MODERNIZER_MAVEN_HOME", "MAVEN_HOME", "M2_HOME"); home != "" {
		config.Maven.Home = home
	}

	if uc := firstEnv("MODERNIZER_UPDATE_CENTER_URL", "JENKINS_UC"); uc != "" {
		config.UpdateCenter.URL = uc
	}

	if recipe := os.Getenv("MODERNIZER_RECIPE"); recipe != "" {
		config.Run.Recipe = recipe
	}
	if workers := os.Getenv("MODERNIZER_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Run.Workers = w
		}
	}
	if dryRun := os.Getenv("MODERNIZER_DRY_RUN"); dryRun != "" {
		if b, err := strconv.ParseBool(dryRun); err == nil {
			config.Run.DryRun = b
		}
	}

	if badgerPath := os.Getenv("MODERNIZER_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("MODERNIZER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MODERNIZER_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// FlagOverrides holds the command-line values that take precedence over files and environment.
// Zero values leave the loaded configuration untouched.
type FlagOverrides struct {
	Plugins          []string
	PluginFile       string
	Recipe           string
	DryRun           bool
	MetadataOnly     bool
	SkipPush         bool
	SkipBuild        bool
	SkipVerification bool
	SkipPullRequest  bool
	Draft            bool
	CleanLocalData   bool
	CleanForks       bool
	CachePath        string
	MavenHome        string
	GitHubOwner      string
	Workers          int
	Debug            bool
	Schedule         bool
}

// ApplyFlagOverrides applies command-line flag overrides to config (highest priority)
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if len(flags.Plugins) > 0 {
		config.Run.Plugins = flags.Plugins
	}
	if flags.PluginFile != "" {
		config.Run.PluginFile = flags.PluginFile
	}
	if flags.Recipe != "" {
		config.Run.Recipe = flags.Recipe
	}
	if flags.CachePath != "" {
		config.Cache.Path = flags.CachePath
	}
	if flags.MavenHome != "" {
		config.Maven.Home = flags.MavenHome
	}
	if flags.GitHubOwner != "" {
		config.GitHub.Owner = flags.GitHubOwner
	}
	if flags.Workers > 0 {
		config.Run.Workers = flags.Workers
	}

	config.Run.DryRun = config.Run.DryRun || flags.DryRun
	config.Run.MetadataOnly = config.Run.MetadataOnly || flags.MetadataOnly
	config.Run.SkipPush = config.Run.SkipPush || flags.SkipPush
	config.Run.SkipBuild = config.Run.SkipBuild || flags.SkipBuild
	config.Run.SkipVerification = config.Run.SkipVerification || flags.SkipVerification
	config.Run.SkipPullRequest = config.Run.SkipPullRequest || flags.SkipPullRequest
	config.Run.Draft = config.Run.Draft || flags.Draft
	config.Run.CleanLocalData = config.Run.CleanLocalData || flags.CleanLocalData
	config.Run.CleanForks = config.Run.CleanForks || flags.CleanForks
	config.Scheduler.Enabled = config.Scheduler.Enabled || flags.Schedule

	if flags.Debug {
		config.Logging.Level = "debug"
	}
}

// Normalize applies implied settings. Dry-run never pushes or opens pull requests.
func (c *Config) Normalize() {
	if c.Run.DryRun {
		c.Run.SkipPush = true
		c.Run.SkipPullRequest = true
	}
	c.Cache.Path = filepath.Clean(c.Cache.Path)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

// Validate checks struct constraints and the scheduler expression
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for name, value := range map[string]string{
		"github.fork_wait":      c.GitHub.ForkWait,
		"maven.timeout":         c.Maven.Timeout,
		"update_center.timeout": c.UpdateCenter.Timeout,
		"update_center.max_age": c.UpdateCenter.MaxAge,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.Scheduler.Enabled {
		if err := ValidateSchedule(c.Scheduler.Schedule); err != nil {
			return fmt.Errorf("invalid scheduler.schedule: %w", err)
		}
	}
	return nil
}

// ValidateSchedule validates a 5 field cron expression and enforces an hourly minimum interval
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) != 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}
	if parts[0] == "*" || strings.HasPrefix(parts[0], "*/") || strings.Contains(parts[0], ",") {
		return fmt.Errorf("schedule must run at most once per hour")
	}
	return nil
}

// Duration parses a duration setting, falling back when empty or invalid
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
