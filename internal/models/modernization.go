package models

// ModernizationKey is the cache slot holding the last modernization summary of a plugin
const ModernizationKey = "modernization-metadata"

// FileChange is the per-file line count reported by a transformation
type FileChange struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// ChangeReport is returned by a transformation engine
type ChangeReport struct {
	Files                 []FileChange `json:"files"`
	RemovedDeprecatedAPIs int          `json:"removed_deprecated_apis"`
}

// HasChanges reports whether at least one file was touched
func (c *ChangeReport) HasChanges() bool {
	return c != nil && len(c.Files) > 0
}

// ModernizationSummary is persisted after every pipeline run of a plugin
type ModernizationSummary struct {
	PluginName            string   `json:"plugin_name"`
	PluginRepository      string   `json:"plugin_repository"`
	PluginVersion         string   `json:"plugin_version,omitempty"`
	RpuBaseline           string   `json:"rpu_baseline,omitempty"`
	MigrationName         string   `json:"migration_name"`
	MigrationDescription  string   `json:"migration_description"`
	Tags                  []string `json:"tags"`
	MigrationID           string   `json:"migration_id"`
	RemovedDeprecatedAPIs int      `json:"removed_deprecated_apis"`
	ChangedFiles          []string `json:"changed_files,omitempty"`
	PullRequestURL        string   `json:"pull_request_url,omitempty"`
}
