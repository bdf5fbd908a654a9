package models

import "time"

// RunRecord is the persisted outcome of one plugin in one batch run
type RunRecord struct {
	ID           string       `json:"id" badgerhold:"key"`
	RunID        string       `json:"run_id" badgerhold:"index"`
	Plugin       string       `json:"plugin" badgerhold:"index"`
	Recipe       string       `json:"recipe"`
	Status       PluginStatus `json:"status"`
	Errors       []string     `json:"errors,omitempty"`
	DryRun       bool         `json:"dry_run"`
	MetadataOnly bool         `json:"metadata_only"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// Duration returns the wall time spent on the plugin
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
