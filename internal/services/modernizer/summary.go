package modernizer

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/models"
)

// Result is the outcome of one plugin in a batch
type Result struct {
	Plugin         string
	Status         models.PluginStatus
	SkipReason     string
	Errors         []string
	ChangedFiles   int
	PullRequestURL string
	Duration       time.Duration
}

// Summary reports every plugin of a batch in submission order
type Summary struct {
	RunID      string
	Recipe     string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
}

var (
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	skippedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	detailStyle    = lipgloss.NewStyle().Faint(true)
)

// Count returns the number of plugins with the status
func (s *Summary) Count(status models.PluginStatus) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Failed reports whether at least one plugin failed
func (s *Summary) Failed() bool {
	return s.Count(models.PluginStatusFailed) > 0
}

// Result returns the outcome of the named plugin
func (s *Summary) Result(plugin string) (Result, bool) {
	for _, r := range s.Results {
		if r.Plugin == plugin {
			return r, true
		}
	}
	return Result{}, false
}

// Print writes a human readable report
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Recipe %s, run %s (%s)\n", s.Recipe, s.RunID, s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	for _, r := range s.Results {
		fmt.Fprintf(w, "  %-40s %s", r.Plugin, statusStyle(r.Status).Render(string(r.Status)))
		switch {
		case r.PullRequestURL != "":
			fmt.Fprintf(w, " %s", r.PullRequestURL)
		case r.SkipReason != "":
			fmt.Fprintf(w, " %s", detailStyle.Render(r.SkipReason))
		}
		fmt.Fprintln(w)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "      %s\n", detailStyle.Render(e))
		}
	}
	fmt.Fprintf(w, "%d completed, %d skipped, %d failed\n",
		s.Count(models.PluginStatusCompleted),
		s.Count(models.PluginStatusSkipped),
		s.Count(models.PluginStatusFailed))
}

// Log writes one event per plugin and a closing total
func (s *Summary) Log(logger arbor.ILogger) {
	for _, r := range s.Results {
		event := logger.Info()
		if r.Status == models.PluginStatusFailed {
			event = logger.Warn()
		}
		event.
			Str("plugin", r.Plugin).
			Str("status", string(r.Status)).
			Str("reason", r.SkipReason).
			Strs("errors", r.Errors).
			Str("duration", r.Duration.Round(time.Millisecond).String()).
			Msg("Plugin processed")
	}

	logger.Info().
		Str("run_id", s.RunID).
		Str("recipe", s.Recipe).
		Int("completed", s.Count(models.PluginStatusCompleted)).
		Int("skipped", s.Count(models.PluginStatusSkipped)).
		Int("failed", s.Count(models.PluginStatusFailed)).
		Msg("Modernization run complete")
}

func statusStyle(status models.PluginStatus) lipgloss.Style {
	switch status {
	case models.PluginStatusCompleted:
		return completedStyle
	case models.PluginStatusFailed:
		return failedStyle
	default:
		return skippedStyle
	}
}

func resultOf(plugin *models.Plugin, changedFiles int, duration time.Duration) Result {
	errs := plugin.AllErrors()
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Error())
	}
	return Result{
		Plugin:         plugin.Name,
		Status:         plugin.Status(),
		SkipReason:     plugin.SkipReason,
		Errors:         messages,
		ChangedFiles:   changedFiles,
		PullRequestURL: plugin.PullRequestURL,
		Duration:       duration,
	}
}
