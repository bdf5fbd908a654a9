package updatecenter

import "time"

// APIPluginLabel marks library plugins that only wrap a third party API
const APIPluginLabel = "api-plugin"

// SnapshotKey is the cache slot holding the last downloaded update center
const SnapshotKey = "update-center"

// PluginEntry is the subset of an update center plugin entry used for flag evaluation
type PluginEntry struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Labels  []string `json:"labels"`
	SCM     string   `json:"scm,omitempty"`
}

// Deprecation points at the announcement of a plugin deprecation
type Deprecation struct {
	URL string `json:"url"`
}

// Snapshot is the cached subset of the update center document
type Snapshot struct {
	FetchedAt    time.Time              `json:"fetched_at"`
	Source       string                 `json:"source"`
	Plugins      map[string]PluginEntry `json:"plugins"`
	Deprecations map[string]Deprecation `json:"deprecations"`
}

// HasLabel reports whether the plugin entry carries the label
func (p PluginEntry) HasLabel(label string) bool {
	for _, l := range p.Labels {
		if l == label {
			return true
		}
	}
	return false
}
