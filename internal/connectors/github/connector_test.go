package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/services/process"
)

// fakeGitHub serves the subset of the REST API used by the connector
type fakeGitHub struct {
	mu         sync.Mutex
	forked     bool
	archived   bool
	openPRs    []map[string]any
	createdPR  map[string]any
	deleted    bool
	synced     bool
	forkCalled bool
}

// with runs fn while holding the fake's lock; the handlers run on server goroutines
func (f *fakeGitHub) with(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	repo := func(owner string, fork bool) map[string]any {
		return map[string]any{
			"name":           "git-plugin",
			"owner":          map[string]any{"login": owner},
			"default_branch": "master",
			"clone_url":      "https://github.com/" + owner + "/git-plugin.git",
			"html_url":       "https://github.com/" + owner + "/git-plugin",
			"archived":       f.archived && !fork,
			"fork":           fork,
		}
	}

	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"login": "bot"})
	})
	mux.HandleFunc("/repos/jenkinsci/git-plugin", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, repo("jenkinsci", false))
	})
	mux.HandleFunc("/repos/bot/git-plugin", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodDelete:
			f.deleted = true
			f.forked = false
			w.WriteHeader(http.StatusNoContent)
		case f.forked:
			writeJSON(w, http.StatusOK, repo("bot", true))
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
		}
	})
	mux.HandleFunc("/repos/jenkinsci/git-plugin/forks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		assert.Equal(t, http.MethodPost, r.Method)
		f.forkCalled = true
		f.forked = true
		writeJSON(w, http.StatusAccepted, repo("bot", true))
	})
	mux.HandleFunc("/repos/bot/git-plugin/merge-upstream", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.synced = true
		writeJSON(w, http.StatusOK, map[string]any{"merge_type": "fast-forward"})
	})
	mux.HandleFunc("/repos/jenkinsci/git-plugin/pulls", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodGet {
			assert.Equal(t, "bot:plugin-modernizer/AddPluginsBom", r.URL.Query().Get("head"))
			assert.Equal(t, "open", r.URL.Query().Get("state"))
			writeJSON(w, http.StatusOK, f.openPRs)
			return
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.createdPR = body
		writeJSON(w, http.StatusCreated, map[string]any{"html_url": "https://github.com/jenkinsci/git-plugin/pull/42"})
	})
	return mux
}

type recordingRunner struct {
	mu       sync.Mutex
	commands []process.Command
	outputs  map[string]string
}

func (r *recordingRunner) Run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	for _, arg := range cmd.Args {
		if out, ok := r.outputs[arg]; ok {
			return &process.Result{Stdout: out}, nil
		}
	}
	return &process.Result{}, nil
}

func (r *recordingRunner) lines() []string {
	var out []string
	for _, c := range r.commands {
		out = append(out, c.String())
	}
	return out
}

func newTestConnector(t *testing.T, config *common.GitHubConfig) (*Connector, *fakeGitHub, *recordingRunner) {
	t.Helper()
	fake := &fakeGitHub{}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	config.APIURL = server.URL
	config.UpstreamOwner = "jenkinsci"
	config.RequestsPerSecond = 100
	runner := &recordingRunner{outputs: map[string]string{}}

	connector, err := NewConnector(config, runner, arbor.NewNoOpLogger())
	require.NoError(t, err)
	connector.pollInterval = time.Millisecond
	return connector, fake, runner
}

func TestConnector_RepositoryFacts(t *testing.T) {
	connector, fake, _ := newTestConnector(t, &common.GitHubConfig{Owner: "bot"})
	plugin := models.NewPlugin("git", t.TempDir())
	ctx := context.Background()

	repo, err := connector.GetRepository(ctx, plugin)
	require.NoError(t, err)
	assert.Equal(t, "jenkinsci/git-plugin", repo.FullName())
	assert.Equal(t, "master", repo.DefaultBranch)

	archived, err := connector.IsArchived(ctx, plugin)
	require.NoError(t, err)
	assert.False(t, archived)

	fake.with(func() { fake.archived = true })
	archived, err = connector.IsArchived(ctx, plugin)
	require.NoError(t, err)
	assert.True(t, archived)

	forked, err := connector.IsForked(ctx, plugin)
	require.NoError(t, err)
	assert.False(t, forked)
}

func TestConnector_ForkSyncDelete(t *testing.T) {
	connector, fake, _ := newTestConnector(t, &common.GitHubConfig{Token: "t0ken", ForkWait: "1s"})
	plugin := models.NewPlugin("git", t.TempDir())
	ctx := context.Background()

	owner, err := connector.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bot", owner)

	require.NoError(t, connector.Fork(ctx, plugin))
	fake.with(func() {
		assert.True(t, fake.forkCalled)
		fake.forkCalled = false
	})

	// Second fork is a no-op
	require.NoError(t, connector.Fork(ctx, plugin))
	fake.with(func() { assert.False(t, fake.forkCalled) })

	require.NoError(t, connector.Sync(ctx, plugin))
	fake.with(func() { assert.True(t, fake.synced) })

	require.NoError(t, connector.DeleteFork(ctx, plugin))
	fake.with(func() { assert.True(t, fake.deleted) })

	// Deleting a missing fork succeeds
	require.NoError(t, connector.DeleteFork(ctx, plugin))
}

func TestConnector_OpenPullRequest(t *testing.T) {
	connector, fake, _ := newTestConnector(t, &common.GitHubConfig{Owner: "bot"})
	plugin := models.NewPlugin("git", t.TempDir())
	ctx := context.Background()
	branch := "plugin-modernizer/AddPluginsBom"

	has, err := connector.HasOpenPullRequest(ctx, plugin, branch)
	require.NoError(t, err)
	assert.False(t, has)

	url, err := connector.OpenPullRequest(ctx, plugin, models.PullRequest{Title: "Add BOM", Body: "body", Branch: branch, Draft: true})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/jenkinsci/git-plugin/pull/42", url)
	fake.with(func() {
		assert.Equal(t, "bot:"+branch, fake.createdPR["head"])
		assert.Equal(t, "master", fake.createdPR["base"])
		assert.Equal(t, true, fake.createdPR["draft"])

		fake.createdPR = nil
		fake.openPRs = []map[string]any{{"html_url": "https://github.com/jenkinsci/git-plugin/pull/7"}}
	})

	// An open pull request is reused
	url, err = connector.OpenPullRequest(ctx, plugin, models.PullRequest{Title: "Add BOM", Branch: branch})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/jenkinsci/git-plugin/pull/7", url)
	fake.with(func() { assert.Nil(t, fake.createdPR) })
}

func TestConnector_FetchClonesThenResets(t *testing.T) {
	connector, _, runner := newTestConnector(t, &common.GitHubConfig{Owner: "bot"})
	plugin := models.NewPlugin("git", t.TempDir())
	ctx := context.Background()

	require.NoError(t, connector.Fetch(ctx, plugin))
	require.Len(t, runner.commands, 1)
	assert.Equal(t, "git clone --branch master https://github.com/jenkinsci/git-plugin.git "+plugin.LocalRepository, runner.commands[0].String())

	require.NoError(t, os.MkdirAll(filepath.Join(plugin.LocalRepository, ".git"), 0755))
	runner.commands = nil
	require.NoError(t, connector.Fetch(ctx, plugin))
	assert.Equal(t, []string{
		"git fetch origin master",
		"git checkout --force master",
		"git reset --hard origin/master",
		"git clean -fd",
	}, runner.lines())
	assert.Equal(t, plugin.LocalRepository, runner.commands[0].Dir)
}

func TestConnector_TokenOnlyOnRemoteGitCommands(t *testing.T) {
	connector, _, runner := newTestConnector(t, &common.GitHubConfig{Owner: "bot", Token: "t0ken"})
	plugin := models.NewPlugin("git", t.TempDir())

	require.NoError(t, connector.Fetch(context.Background(), plugin))
	require.NoError(t, connector.CheckoutBranch(context.Background(), plugin, "plugin-modernizer/x"))

	credentials := base64.StdEncoding.EncodeToString([]byte("x-access-token:t0ken"))
	clone := runner.commands[0]
	assert.True(t, strings.HasPrefix(clone.String(), "git clone "))
	assert.NotContains(t, strings.Join(clone.Args, " "), credentials)
	assert.Contains(t, clone.Env, "GIT_CONFIG_KEY_0=http.extraHeader")
	assert.Contains(t, clone.Env, "GIT_CONFIG_VALUE_0=Authorization: Basic "+credentials)

	checkout := runner.commands[1]
	assert.Equal(t, "git checkout -B plugin-modernizer/x", checkout.String())
	assert.Equal(t, []string{"GIT_TERMINAL_PROMPT=0"}, checkout.Env)
}

func TestConnector_CommitChanges(t *testing.T) {
	connector, _, runner := newTestConnector(t, &common.GitHubConfig{Owner: "bot", CommitterName: "bot", CommitterEmail: "bot@example.com"})
	plugin := models.NewPlugin("git", t.TempDir())

	committed, err := connector.CommitChanges(context.Background(), plugin, "msg")
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, []string{"git add --all", "git status --porcelain"}, runner.lines())

	runner.commands = nil
	runner.outputs["--porcelain"] = " M pom.xml\n"
	committed, err = connector.CommitChanges(context.Background(), plugin, "msg")
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, "git -c user.name=bot -c user.email=bot@example.com commit --message msg", runner.commands[2].String())
}

func TestConnector_PushChanges(t *testing.T) {
	connector, fake, runner := newTestConnector(t, &common.GitHubConfig{Owner: "bot"})
	plugin := models.NewPlugin("git", t.TempDir())

	assert.Error(t, connector.PushChanges(context.Background(), plugin, "b"))

	fake.with(func() { fake.forked = true })
	require.NoError(t, connector.PushChanges(context.Background(), plugin, "b"))
	assert.Equal(t, "git push --force https://github.com/bot/git-plugin.git HEAD:refs/heads/b", runner.commands[0].String())
}

func TestConnector_ChangedFiles(t *testing.T) {
	connector, _, runner := newTestConnector(t, &common.GitHubConfig{Owner: "bot"})
	runner.outputs["--numstat"] = "3\t1\tpom.xml\n-\t-\tdocs/logo.png\n10\t0\t.github/dependabot.yml\n"

	changes, err := connector.ChangedFiles(context.Background(), models.NewPlugin("git", t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, []models.FileChange{
		{Path: "pom.xml", Additions: 3, Deletions: 1},
		{Path: "docs/logo.png"},
		{Path: ".github/dependabot.yml", Additions: 10},
	}, changes)
}
