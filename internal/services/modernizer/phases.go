package modernizer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/models"
)

// pipeline is the state of one plugin's run, owned by a single worker
type pipeline struct {
	plugin        *models.Plugin
	logger        arbor.ILogger
	report        *models.ChangeReport
	fetched       bool
	buildPrepared bool
	pushed        bool
	started       time.Time
	duration      time.Duration
}

func (p *pipeline) changedFiles() int {
	if p.report == nil {
		return 0
	}
	return len(p.report.Files)
}

// phase is one pipeline step. skip returns a non-empty reason when the step must not run.
type phase struct {
	name string
	skip func(p *pipeline) string
	run  func(ctx context.Context, p *pipeline) error
}

const (
	PhaseCleanLocalData = "clean-local-data"
	PhaseFetch          = "fetch"
	PhaseFork           = "fork"
	PhaseCheckout       = "checkout-branch"
	PhaseMetadata       = "extract-metadata"
	PhaseDependabot     = "dependabot-config"
	PhaseTransform      = "apply-transformation"
	PhaseCompile        = "compile"
	PhaseVerify         = "verify"
	PhaseCommit         = "commit"
	PhasePush           = "push"
	PhasePullRequest    = "open-pull-request"
)

func (m *Modernizer) buildPhases() []phase {
	return []phase{
		{name: PhaseCleanLocalData, skip: m.unless(m.config.CleanLocalData, "clean local data disabled"), run: m.cleanLocalData},
		{name: PhaseFetch, run: m.fetch},
		{name: PhaseFork, skip: m.skipInMetadataOnly, run: m.fork},
		{name: PhaseCheckout, run: m.checkout},
		{name: PhaseMetadata, run: m.extractMetadata},
		{name: PhaseDependabot, run: m.dependabot},
		{name: PhaseTransform, skip: m.skipInMetadataOnly, run: m.transform},
		{name: PhaseCompile, skip: m.skipBuild, run: m.compile},
		{name: PhaseVerify, skip: m.skipVerify, run: m.verify},
		{name: PhaseCommit, skip: m.skipInMetadataOnly, run: m.commit},
		{name: PhasePush, skip: m.skipPush, run: m.push},
		{name: PhasePullRequest, skip: m.skipPullRequest, run: m.openPullRequest},
	}
}

func (m *Modernizer) unless(enabled bool, reason string) func(*pipeline) string {
	return func(*pipeline) string {
		if enabled {
			return ""
		}
		return reason
	}
}

func (m *Modernizer) skipInMetadataOnly(*pipeline) string {
	if m.config.MetadataOnly {
		return "metadata only"
	}
	return ""
}

func (m *Modernizer) skipBuild(p *pipeline) string {
	switch {
	case m.config.MetadataOnly:
		return "metadata only"
	case m.config.SkipBuild:
		return "build disabled"
	case !m.recipe.RequiresBuild():
		return "recipe does not require a build"
	case p.plugin.HasErrors() || p.plugin.HasPreconditionErrors():
		return "plugin has errors"
	}
	return ""
}

func (m *Modernizer) skipVerify(p *pipeline) string {
	if reason := m.skipBuild(p); reason != "" {
		return reason
	}
	if m.config.SkipVerification {
		return "verification disabled"
	}
	return ""
}

func (m *Modernizer) skipPush(p *pipeline) string {
	switch {
	case m.config.MetadataOnly:
		return "metadata only"
	case m.config.DryRun:
		return "dry run"
	case m.config.SkipPush:
		return "push disabled"
	case !p.plugin.HasCommits:
		return "nothing committed"
	}
	return ""
}

func (m *Modernizer) skipPullRequest(p *pipeline) string {
	switch {
	case m.config.MetadataOnly:
		return "metadata only"
	case m.config.DryRun:
		return "dry run"
	case m.config.SkipPullRequest:
		return "pull request disabled"
	case !p.pushed:
		return "nothing pushed"
	}
	return ""
}

func (m *Modernizer) cleanLocalData(ctx context.Context, p *pipeline) error {
	if err := os.RemoveAll(p.plugin.LocalRepository); err != nil {
		return fmt.Errorf("failed to remove %s: %w", p.plugin.LocalRepository, err)
	}
	return nil
}

func (m *Modernizer) fetch(ctx context.Context, p *pipeline) error {
	archived, err := m.vcs.IsArchived(ctx, p.plugin)
	if err != nil {
		return err
	}
	if archived {
		p.plugin.Skip("repository is archived")
		return nil
	}

	if err := m.vcs.Fetch(ctx, p.plugin); err != nil {
		return err
	}
	p.fetched = true
	return nil
}

func (m *Modernizer) fork(ctx context.Context, p *pipeline) error {
	if err := m.vcs.Fork(ctx, p.plugin); err != nil {
		return err
	}
	return m.vcs.Sync(ctx, p.plugin)
}

func (m *Modernizer) checkout(ctx context.Context, p *pipeline) error {
	return m.vcs.CheckoutBranch(ctx, p.plugin, m.Branch())
}

func (m *Modernizer) dependabot(ctx context.Context, p *pipeline) error {
	created, err := ensureDependabotConfig(p.plugin)
	if err != nil {
		return err
	}
	if created {
		p.logger.Info().Str("file", DependabotFile).Msg("Created default dependabot config")
	}
	return nil
}

// extractMetadata loads or collects metadata, evaluates the plugin-level flags
// and checks the recipe precondition against the result. It runs before anything
// writes to the working copy.
func (m *Modernizer) extractMetadata(ctx context.Context, p *pipeline) error {
	plugin := p.plugin

	md, err := m.loadOrCollectMetadata(ctx, p)
	if err != nil {
		return err
	}
	if md == nil {
		plugin.AddPreconditionError(fmt.Sprintf("no metadata could be extracted for %s", plugin.Name), nil)
		return nil
	}
	plugin.Metadata = md

	if m.registry != nil && m.facts != nil {
		if err := m.registry.EvaluateAll(ctx, plugin, m.facts); err != nil {
			return err
		}
	}

	ok, err := m.checker.CheckPrecondition(m.recipe, plugin.Metadata)
	if err != nil {
		plugin.AddPreconditionError(fmt.Sprintf("failed to evaluate precondition of %s", m.recipe.ShortName()), err)
		return nil
	}
	if !ok {
		plugin.AddPreconditionError(fmt.Sprintf("recipe %s is not applicable", m.recipe.ShortName()), nil)
	}
	return nil
}

func (m *Modernizer) transform(ctx context.Context, p *pipeline) error {
	report, err := m.engine.Apply(ctx, m.recipe, p.plugin)
	if err != nil {
		return err
	}
	if report == nil {
		report = &models.ChangeReport{}
	}
	p.report = report
	p.plugin.HasChanges = report.HasChanges()

	p.logger.Info().
		Str("recipe", m.recipe.ShortName()).
		Int("files", len(report.Files)).
		Msg("Recipe applied")
	return nil
}

// prepareBuild runs once before the first build tool invocation
func (m *Modernizer) prepareBuild(ctx context.Context, p *pipeline) error {
	if p.buildPrepared {
		return nil
	}
	if err := m.builder.AddRelativePathIfMissing(ctx, p.plugin); err != nil {
		return err
	}
	p.buildPrepared = true
	return nil
}

func (m *Modernizer) compile(ctx context.Context, p *pipeline) error {
	if err := m.prepareBuild(ctx, p); err != nil {
		return err
	}
	return m.builder.InvokeGoal(ctx, p.plugin, compileGoal)
}

func (m *Modernizer) verify(ctx context.Context, p *pipeline) error {
	if err := m.prepareBuild(ctx, p); err != nil {
		return err
	}
	return m.builder.InvokeGoal(ctx, p.plugin, verifyGoal)
}

func (m *Modernizer) commit(ctx context.Context, p *pipeline) error {
	message := m.recipe.DisplayName
	if m.recipe.Description != "" {
		message += "\n\n" + m.recipe.Description
	}
	committed, err := m.vcs.CommitChanges(ctx, p.plugin, message)
	if err != nil {
		return err
	}
	p.plugin.HasCommits = committed
	if !committed {
		p.logger.Info().Msg("No changes to commit")
	}
	return nil
}

func (m *Modernizer) push(ctx context.Context, p *pipeline) error {
	if err := m.vcs.PushChanges(ctx, p.plugin, m.Branch()); err != nil {
		return err
	}
	p.pushed = true
	return nil
}

func (m *Modernizer) openPullRequest(ctx context.Context, p *pipeline) error {
	url, err := m.vcs.OpenPullRequest(ctx, p.plugin, models.PullRequest{
		Title:  m.recipe.DisplayName,
		Body:   m.pullRequestBody(p),
		Branch: m.Branch(),
		Draft:  m.config.Draft,
	})
	if err != nil {
		return err
	}
	p.plugin.PullRequestURL = url
	p.logger.Info().Str("url", url).Bool("draft", m.config.Draft).Msg("Pull request open")
	return nil
}

func (m *Modernizer) pullRequestBody(p *pipeline) string {
	body := fmt.Sprintf("Applies the `%s` recipe.\n\n%s\n", m.recipe.ShortName(), m.recipe.Description)
	if p.report != nil && len(p.report.Files) > 0 {
		body += "\nChanged files:\n\n"
		for _, f := range p.report.Files {
			body += fmt.Sprintf("- `%s` (+%d -%d)\n", f.Path, f.Additions, f.Deletions)
		}
	}
	return body
}
