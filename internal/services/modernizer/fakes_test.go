package modernizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/services/metadata"
	"github.com/ternarybob/modernizer/internal/storage/cache"
)

const testPom = `<?xml version="1.0" encoding="UTF-8"?>
<project>
  <parent>
    <groupId>org.jenkins-ci.plugins</groupId>
    <artifactId>plugin</artifactId>
    <version>4.80</version>
  </parent>
  <artifactId>login-theme</artifactId>
</project>
`

// recorder collects "<plugin> <call>" entries from concurrent workers
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(plugin *models.Plugin, call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, plugin.Name+" "+call)
}

func (r *recorder) callsOf(plugin string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	prefix := plugin + " "
	for _, c := range r.calls {
		if len(c) > len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c[len(prefix):])
		}
	}
	return out
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

type fakeVCS struct {
	recorder
	archived        map[string]bool
	upstream        map[string]map[string]string
	nothingToCommit bool
	openPR          bool
	fetchErr        error
	forked          bool
}

// publish sets the content of a file in a plugin's upstream repository. Call it
// before Start; workers only read the upstream files.
func (f *fakeVCS) publish(plugin, rel, content string) {
	if f.upstream == nil {
		f.upstream = map[string]map[string]string{}
	}
	if f.upstream[plugin] == nil {
		f.upstream[plugin] = map[string]string{models.PomFile: testPom}
	}
	f.upstream[plugin][rel] = content
}

// Fetch leaves the working copy identical to upstream, like a clone or a
// fetch followed by a hard reset and clean
func (f *fakeVCS) Fetch(ctx context.Context, plugin *models.Plugin) error {
	f.record(plugin, "fetch")
	if f.fetchErr != nil {
		return f.fetchErr
	}
	if err := os.RemoveAll(plugin.LocalRepository); err != nil {
		return err
	}

	files, ok := f.upstream[plugin.Name]
	if !ok {
		files = map[string]string{models.PomFile: testPom}
	}
	for rel, content := range files {
		path := filepath.Join(plugin.LocalRepository, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeVCS) Fork(ctx context.Context, plugin *models.Plugin) error {
	f.record(plugin, "fork")
	return nil
}

func (f *fakeVCS) IsForked(ctx context.Context, plugin *models.Plugin) (bool, error) {
	f.record(plugin, "is-forked")
	return f.forked, nil
}

func (f *fakeVCS) DeleteFork(ctx context.Context, plugin *models.Plugin) error {
	f.record(plugin, "delete-fork")
	return nil
}

func (f *fakeVCS) IsArchived(ctx context.Context, plugin *models.Plugin) (bool, error) {
	f.record(plugin, "is-archived")
	return f.archived[plugin.Name], nil
}

func (f *fakeVCS) Sync(ctx context.Context, plugin *models.Plugin) error {
	f.record(plugin, "sync")
	return nil
}

func (f *fakeVCS) CheckoutBranch(ctx context.Context, plugin *models.Plugin, branch string) error {
	f.record(plugin, "checkout "+branch)
	return nil
}

func (f *fakeVCS) CommitChanges(ctx context.Context, plugin *models.Plugin, message string) (bool, error) {
	f.record(plugin, "commit")
	return !f.nothingToCommit, nil
}

func (f *fakeVCS) PushChanges(ctx context.Context, plugin *models.Plugin, branch string) error {
	f.record(plugin, "push "+branch)
	return nil
}

func (f *fakeVCS) OpenPullRequest(ctx context.Context, plugin *models.Plugin, pr models.PullRequest) (string, error) {
	f.record(plugin, fmt.Sprintf("open-pr draft=%t", pr.Draft))
	return "https://github.com/jenkinsci/" + plugin.RepositoryName + "/pull/1", nil
}

func (f *fakeVCS) HasOpenPullRequest(ctx context.Context, plugin *models.Plugin, branch string) (bool, error) {
	f.record(plugin, "has-open-pr")
	return f.openPR, nil
}

func (f *fakeVCS) GetRepository(ctx context.Context, plugin *models.Plugin) (*models.Repository, error) {
	return &models.Repository{Owner: "jenkinsci", Name: plugin.RepositoryName, DefaultBranch: "main"}, nil
}

func (f *fakeVCS) GetRepositoryFork(ctx context.Context, plugin *models.Plugin) (*models.Repository, error) {
	return nil, interfaces.ErrNotFound
}

func (f *fakeVCS) ChangedFiles(ctx context.Context, plugin *models.Plugin) ([]models.FileChange, error) {
	return nil, nil
}

type fakeBuilder struct {
	recorder
	failGoal string
}

func (f *fakeBuilder) InvokeGoal(ctx context.Context, plugin *models.Plugin, goals ...string) error {
	for _, g := range goals {
		f.record(plugin, "goal "+g)
		if g == f.failGoal {
			return fmt.Errorf("mvn %s: exit status 1", g)
		}
	}
	return nil
}

func (f *fakeBuilder) InvokeTransformation(ctx context.Context, plugin *models.Plugin, recipe *models.Recipe) error {
	f.record(plugin, "transformation")
	return nil
}

func (f *fakeBuilder) AddRelativePathIfMissing(ctx context.Context, plugin *models.Plugin) error {
	f.record(plugin, "relative-path")
	plugin.RelativePathEnsured = true
	return nil
}

type fakeEngine struct {
	recorder
	failFor map[string]error
}

func (f *fakeEngine) Apply(ctx context.Context, recipe *models.Recipe, plugin *models.Plugin) (*models.ChangeReport, error) {
	f.record(plugin, "apply "+recipe.ShortName())
	if err := f.failFor[plugin.Name]; err != nil {
		return nil, err
	}
	return &models.ChangeReport{
		Files:                 []models.FileChange{{Path: models.PomFile, Additions: 3, Deletions: 1}},
		RemovedDeprecatedAPIs: 2,
	}, nil
}

type fakeCollector struct {
	recorder
	store *cache.Store
}

func (f *fakeCollector) Collect(ctx context.Context, plugin *models.Plugin) (*models.Metadata, error) {
	f.record(plugin, "collect")
	checksum, err := metadata.Checksum(plugin.LocalRepository)
	if err != nil {
		return nil, err
	}
	md := &models.Metadata{
		Key:                plugin.Name,
		PluginName:         "Login Theme",
		ParentVersion:      "4.80",
		JenkinsVersion:     "2.440.3",
		DescriptorChecksum: checksum,
		ExtractedAt:        time.Now().UTC(),
	}
	if err := f.store.Put(plugin.Name, models.MetadataKey, md); err != nil {
		return nil, err
	}
	return md, nil
}

type fakeChecker struct {
	notApplicable map[string]bool
}

func (f *fakeChecker) CheckPrecondition(recipe *models.Recipe, md *models.Metadata) (bool, error) {
	if md == nil {
		return false, fmt.Errorf("no metadata")
	}
	return !f.notApplicable[md.Key], nil
}

type fakeFacts struct {
	deprecated map[string]bool
}

func (f *fakeFacts) IsDeprecated(ctx context.Context, plugin string) (bool, error) {
	return f.deprecated[plugin], nil
}

func (f *fakeFacts) IsAPIPlugin(ctx context.Context, plugin string) (bool, error) {
	return false, nil
}

func (f *fakeFacts) LatestVersion(ctx context.Context, plugin string) (string, error) {
	return "1.2", nil
}

type fakeRuns struct {
	mu      sync.Mutex
	records []*models.RunRecord
}

func (f *fakeRuns) SaveRun(ctx context.Context, record *models.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeRuns) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	return nil, interfaces.ErrNotFound
}

func (f *fakeRuns) ListRunsByPlugin(ctx context.Context, plugin string, limit int) ([]*models.RunRecord, error) {
	return nil, nil
}

func (f *fakeRuns) ListRunsByBatch(ctx context.Context, runID string) ([]*models.RunRecord, error) {
	return nil, nil
}

func (f *fakeRuns) ListRecentRuns(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	return nil, nil
}

func (f *fakeRuns) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func dependabotPath(plugin *models.Plugin) string {
	return filepath.Join(plugin.LocalRepository, filepath.FromSlash(DependabotFile))
}
