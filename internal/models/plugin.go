// -----------------------------------------------------------------------
// Plugin - A single independently hosted component being modernized
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PluginStatus is the outcome of one plugin's pipeline run
type PluginStatus string

const (
	PluginStatusPending   PluginStatus = "pending"
	PluginStatusCompleted PluginStatus = "completed"
	PluginStatusSkipped   PluginStatus = "skipped"
	PluginStatusFailed    PluginStatus = "failed"
)

// PomFile is the descriptor file name at the root of every plugin repository
const PomFile = "pom.xml"

// ErrorRecord is a (message, cause) pair attached to a plugin.
// Records are append-only for the duration of a run.
type ErrorRecord struct {
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e ErrorRecord) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As
func (e ErrorRecord) Unwrap() error {
	return e.Cause
}

// Plugin is owned by the orchestrator for the duration of one run. Every
// pipeline phase may mutate it; persisted facts survive in the cache.
type Plugin struct {
	Name            string `json:"name"`
	RepositoryName  string `json:"repository_name"`
	LocalRepository string `json:"local_repository"`

	// Runtime state, reset for every run
	Metadata            *Metadata     `json:"-"`
	Errors              []ErrorRecord `json:"-"`
	PreconditionErrors  []ErrorRecord `json:"-"`
	HasChanges          bool          `json:"-"`
	HasCommits          bool          `json:"-"`
	RelativePathEnsured bool          `json:"-"`
	Skipped             bool          `json:"-"`
	SkipReason          string        `json:"-"`
	PullRequestURL      string        `json:"-"`
}

// NewPlugin creates a plugin whose working copy lives under <cacheRoot>/<name>/sources.
// The repository name defaults to "<name>-plugin" unless the name already carries the suffix.
func NewPlugin(name string, cacheRoot string) *Plugin {
	name = strings.TrimSpace(name)
	repo := name
	if !strings.HasSuffix(repo, "-plugin") {
		repo = repo + "-plugin"
	}
	return &Plugin{
		Name:            name,
		RepositoryName:  repo,
		LocalRepository: filepath.Join(cacheRoot, name, "sources"),
	}
}

// WithRepositoryName overrides the remote repository name
func (p *Plugin) WithRepositoryName(repo string) *Plugin {
	p.RepositoryName = repo
	return p
}

// PomPath returns the absolute path of the plugin descriptor in the working copy
func (p *Plugin) PomPath() string {
	return filepath.Join(p.LocalRepository, PomFile)
}

// HasFile reports whether a file exists in the working copy at the given relative path
func (p *Plugin) HasFile(rel string) bool {
	info, err := os.Stat(filepath.Join(p.LocalRepository, filepath.FromSlash(rel)))
	return err == nil && !info.IsDir()
}

// AddError records a general failure on the plugin
func (p *Plugin) AddError(message string, cause error) {
	p.Errors = append(p.Errors, ErrorRecord{Message: message, Cause: cause})
}

// AddPreconditionError records that the selected recipe cannot be applied
func (p *Plugin) AddPreconditionError(message string, cause error) {
	p.PreconditionErrors = append(p.PreconditionErrors, ErrorRecord{Message: message, Cause: cause})
}

// HasErrors reports whether any general error was recorded
func (p *Plugin) HasErrors() bool {
	return len(p.Errors) > 0
}

// HasPreconditionErrors reports whether any precondition error was recorded
func (p *Plugin) HasPreconditionErrors() bool {
	return len(p.PreconditionErrors) > 0
}

// Skip marks the plugin as intentionally not processed further
func (p *Plugin) Skip(reason string) {
	p.Skipped = true
	p.SkipReason = reason
}

// Status derives the run outcome from the accumulated state
func (p *Plugin) Status() PluginStatus {
	switch {
	case p.HasErrors():
		return PluginStatusFailed
	case p.Skipped || p.HasPreconditionErrors():
		return PluginStatusSkipped
	default:
		return PluginStatusCompleted
	}
}

// AllErrors returns precondition errors followed by general errors
func (p *Plugin) AllErrors() []ErrorRecord {
	all := make([]ErrorRecord, 0, len(p.PreconditionErrors)+len(p.Errors))
	all = append(all, p.PreconditionErrors...)
	all = append(all, p.Errors...)
	return all
}

// String returns the plugin name
func (p *Plugin) String() string {
	return p.Name
}
