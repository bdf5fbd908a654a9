package modernizer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/modernizer/internal/models"
	"gopkg.in/yaml.v3"
)

// DependabotFile is the dependency update bot configuration, relative to the working copy
const DependabotFile = ".github/dependabot.yml"

type dependabotConfig struct {
	Version int                `yaml:"version"`
	Updates []dependabotUpdate `yaml:"updates"`
}

type dependabotUpdate struct {
	PackageEcosystem string             `yaml:"package-ecosystem"`
	Directory        string             `yaml:"directory"`
	Schedule         dependabotSchedule `yaml:"schedule"`
}

type dependabotSchedule struct {
	Interval string `yaml:"interval"`
}

func defaultDependabotConfig() dependabotConfig {
	return dependabotConfig{
		Version: 2,
		Updates: []dependabotUpdate{
			{PackageEcosystem: "maven", Directory: "/", Schedule: dependabotSchedule{Interval: "monthly"}},
			{PackageEcosystem: "github-actions", Directory: "/", Schedule: dependabotSchedule{Interval: "monthly"}},
		},
	}
}

// ensureDependabotConfig writes the default configuration when the working copy has none.
// An existing file is never touched. Reports whether the file was created.
func ensureDependabotConfig(plugin *models.Plugin) (bool, error) {
	if plugin.HasFile(DependabotFile) {
		return false, nil
	}

	data, err := yaml.Marshal(defaultDependabotConfig())
	if err != nil {
		return false, fmt.Errorf("failed to encode dependabot config: %w", err)
	}

	path := filepath.Join(plugin.LocalRepository, filepath.FromSlash(DependabotFile))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write dependabot config: %w", err)
	}
	return true, nil
}
