package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/services/process"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultForkWait     = 30 * time.Second
	defaultPollInterval = 2 * time.Second
	gitTimeout          = 10 * time.Minute
)

// Connector implements interfaces.VCSService with the GitHub REST API for
// remote operations and the git CLI for the working copy
type Connector struct {
	client       *github.Client
	git          process.Runner
	config       *common.GitHubConfig
	limiter      *rate.Limiter
	logger       arbor.ILogger
	pollInterval time.Duration

	ownerMu sync.Mutex
	owner   string
}

// NewConnector creates a new GitHub connector. Without a token only public,
// read-only operations succeed.
func NewConnector(config *common.GitHubConfig, git process.Runner, logger arbor.ILogger) (*Connector, error) {
	httpClient := &http.Client{Timeout: time.Minute}
	if config.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: config.Token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
	} else {
		logger.Warn().Msg("No GitHub token configured, only public read operations will work")
	}

	client := github.NewClient(httpClient)
	client.UserAgent = common.UserAgent()
	if config.APIURL != "" && config.APIURL != common.DefaultGitHubAPIURL {
		base, err := url.Parse(strings.TrimSuffix(config.APIURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = base
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &Connector{
		client:       client,
		git:          git,
		config:       config,
		limiter:      rate.NewLimiter(rate.Limit(rps), rps),
		logger:       logger,
		pollInterval: defaultPollInterval,
		owner:        config.Owner,
	}, nil
}

// Owner returns the account holding the forks: the configured owner, else the token's user
func (c *Connector) Owner(ctx context.Context) (string, error) {
	c.ownerMu.Lock()
	defer c.ownerMu.Unlock()

	if c.owner != "" {
		return c.owner, nil
	}
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to resolve github user: %w", err)
	}
	c.owner = user.GetLogin()
	return c.owner, nil
}

// GetRepository returns the upstream repository of the plugin
func (c *Connector) GetRepository(ctx context.Context, plugin *models.Plugin) (*models.Repository, error) {
	return c.getRepository(ctx, c.config.UpstreamOwner, plugin.RepositoryName)
}

// GetRepositoryFork returns the fork of the plugin repository under the owner
func (c *Connector) GetRepositoryFork(ctx context.Context, plugin *models.Plugin) (*models.Repository, error) {
	owner, err := c.Owner(ctx)
	if err != nil {
		return nil, err
	}
	repo, err := c.getRepository(ctx, owner, plugin.RepositoryName)
	if err != nil {
		return nil, err
	}
	if !repo.Fork {
		return nil, fmt.Errorf("%s exists but is not a fork", repo.FullName())
	}
	return repo, nil
}

// IsArchived reports whether the upstream repository is archived
func (c *Connector) IsArchived(ctx context.Context, plugin *models.Plugin) (bool, error) {
	repo, err := c.GetRepository(ctx, plugin)
	if err != nil {
		return false, err
	}
	return repo.Archived, nil
}

// IsForked reports whether the owner already holds a fork of the plugin repository
func (c *Connector) IsForked(ctx context.Context, plugin *models.Plugin) (bool, error) {
	_, err := c.GetRepositoryFork(ctx, plugin)
	if errors.Is(err, interfaces.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Fork creates the fork when missing and waits until it is visible
func (c *Connector) Fork(ctx context.Context, plugin *models.Plugin) error {
	forked, err := c.IsForked(ctx, plugin)
	if err != nil {
		return err
	}
	if forked {
		c.logger.Debug().Str("plugin", plugin.Name).Msg("Fork already exists")
		return nil
	}

	owner, err := c.Owner(ctx)
	if err != nil {
		return err
	}

	opts := &github.RepositoryCreateForkOptions{DefaultBranchOnly: true}
	if c.config.Owner != "" {
		if user, err := c.authenticatedLogin(ctx); err == nil && !strings.EqualFold(user, owner) {
			opts.Organization = owner
		}
	}

	if err := c.wait(ctx); err != nil {
		return err
	}
	_, _, err = c.client.Repositories.CreateFork(ctx, c.config.UpstreamOwner, plugin.RepositoryName, opts)
	var accepted *github.AcceptedError
	if err != nil && !errors.As(err, &accepted) {
		return fmt.Errorf("failed to fork %s/%s: %w", c.config.UpstreamOwner, plugin.RepositoryName, err)
	}

	c.logger.Info().Str("plugin", plugin.Name).Str("owner", owner).Msg("Fork requested")

	// Forking is asynchronous on the GitHub side
	deadline := time.Now().Add(common.Duration(c.config.ForkWait, defaultForkWait))
	for {
		if forked, err := c.IsForked(ctx, plugin); err != nil {
			return err
		} else if forked {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("fork of %s did not appear within %s", plugin.RepositoryName, c.config.ForkWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// DeleteFork removes the owner's fork. Repositories that are not forks are never deleted.
func (c *Connector) DeleteFork(ctx context.Context, plugin *models.Plugin) error {
	fork, err := c.GetRepositoryFork(ctx, plugin)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.wait(ctx); err != nil {
		return err
	}
	if _, err := c.client.Repositories.Delete(ctx, fork.Owner, fork.Name); err != nil {
		return fmt.Errorf("failed to delete fork %s: %w", fork.FullName(), err)
	}
	c.logger.Info().Str("fork", fork.FullName()).Msg("Fork deleted")
	return nil
}

// Sync merges the upstream default branch into the fork
func (c *Connector) Sync(ctx context.Context, plugin *models.Plugin) error {
	fork, err := c.GetRepositoryFork(ctx, plugin)
	if err != nil {
		return err
	}
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, _, err = c.client.Repositories.MergeUpstream(ctx, fork.Owner, fork.Name, &github.RepoMergeUpstreamRequest{
		Branch: github.String(fork.DefaultBranch),
	})
	if err != nil {
		return fmt.Errorf("failed to sync fork %s: %w", fork.FullName(), err)
	}
	c.logger.Debug().Str("fork", fork.FullName()).Msg("Fork synced with upstream")
	return nil
}

// HasOpenPullRequest reports whether an open pull request exists for owner:branch
func (c *Connector) HasOpenPullRequest(ctx context.Context, plugin *models.Plugin, branch string) (bool, error) {
	pr, err := c.findOpenPullRequest(ctx, plugin, branch)
	if err != nil {
		return false, err
	}
	return pr != nil, nil
}

// OpenPullRequest opens a pull request from the fork branch to the upstream default
// branch. An already open pull request for the same branch is returned instead.
func (c *Connector) OpenPullRequest(ctx context.Context, plugin *models.Plugin, pr models.PullRequest) (string, error) {
	existing, err := c.findOpenPullRequest(ctx, plugin, pr.Branch)
	if err != nil {
		return "", err
	}
	if existing != nil {
		c.logger.Info().Str("plugin", plugin.Name).Str("url", existing.GetHTMLURL()).Msg("Pull request already open")
		return existing.GetHTMLURL(), nil
	}

	upstream, err := c.GetRepository(ctx, plugin)
	if err != nil {
		return "", err
	}
	owner, err := c.Owner(ctx)
	if err != nil {
		return "", err
	}

	if err := c.wait(ctx); err != nil {
		return "", err
	}
	created, _, err := c.client.PullRequests.Create(ctx, upstream.Owner, upstream.Name, &github.NewPullRequest{
		Title: github.String(pr.Title),
		Head:  github.String(owner + ":" + pr.Branch),
		Base:  github.String(upstream.DefaultBranch),
		Body:  github.String(pr.Body),
		Draft: github.Bool(pr.Draft),
	})
	if err != nil {
		return "", fmt.Errorf("failed to open pull request on %s: %w", upstream.FullName(), err)
	}

	c.logger.Info().Str("plugin", plugin.Name).Str("url", created.GetHTMLURL()).Bool("draft", pr.Draft).Msg("Pull request opened")
	return created.GetHTMLURL(), nil
}

func (c *Connector) findOpenPullRequest(ctx context.Context, plugin *models.Plugin, branch string) (*github.PullRequest, error) {
	owner, err := c.Owner(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	prs, _, err := c.client.PullRequests.List(ctx, c.config.UpstreamOwner, plugin.RepositoryName, &github.PullRequestListOptions{
		State: "open",
		Head:  owner + ":" + branch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests: %w", err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return prs[0], nil
}

func (c *Connector) getRepository(ctx context.Context, owner, name string) (*models.Repository, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	repo, _, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("repository %s/%s: %w", owner, name, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get repository %s/%s: %w", owner, name, err)
	}
	return &models.Repository{
		Owner:         repo.GetOwner().GetLogin(),
		Name:          repo.GetName(),
		DefaultBranch: repo.GetDefaultBranch(),
		CloneURL:      repo.GetCloneURL(),
		HTMLURL:       repo.GetHTMLURL(),
		Archived:      repo.GetArchived(),
		Fork:          repo.GetFork(),
	}, nil
}

func (c *Connector) authenticatedLogin(ctx context.Context) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", err
	}
	return user.GetLogin(), nil
}

func (c *Connector) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

// Ensure interface compliance
var _ interfaces.VCSService = (*Connector)(nil)
