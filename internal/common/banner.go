package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective run settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("Plugin Modernizer", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("recipe", config.Run.Recipe).
		Str("cache", config.Cache.Path).
		Bool("dry_run", config.Run.DryRun).
		Bool("metadata_only", config.Run.MetadataOnly).
		Int("workers", config.Run.Workers).
		Msg("Plugin modernizer starting")
}
