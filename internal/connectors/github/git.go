package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/services/process"
)

// Fetch clones the upstream repository, or fetches and hard resets an existing
// working copy to the upstream default branch
func (c *Connector) Fetch(ctx context.Context, plugin *models.Plugin) error {
	upstream, err := c.GetRepository(ctx, plugin)
	if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(plugin.LocalRepository, ".git")); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(plugin.LocalRepository), 0755); err != nil {
			return fmt.Errorf("failed to create working copy directory: %w", err)
		}
		c.logger.Info().Str("plugin", plugin.Name).Str("repository", upstream.FullName()).Msg("Cloning repository")
		_, err := c.runGit(ctx, filepath.Dir(plugin.LocalRepository), true,
			"clone", "--branch", upstream.DefaultBranch, upstream.CloneURL, plugin.LocalRepository)
		return err
	}

	c.logger.Info().Str("plugin", plugin.Name).Str("repository", upstream.FullName()).Msg("Fetching repository")
	steps := [][]string{
		{"fetch", "origin", upstream.DefaultBranch},
		{"checkout", "--force", upstream.DefaultBranch},
		{"reset", "--hard", "origin/" + upstream.DefaultBranch},
		{"clean", "-fd"},
	}
	for _, args := range steps {
		if _, err := c.runGit(ctx, plugin.LocalRepository, true, args...); err != nil {
			return err
		}
	}
	return nil
}

// CheckoutBranch creates or resets the branch at the current HEAD and checks it out
func (c *Connector) CheckoutBranch(ctx context.Context, plugin *models.Plugin, branch string) error {
	_, err := c.runGit(ctx, plugin.LocalRepository, false, "checkout", "-B", branch)
	return err
}

// CommitChanges stages every change and commits it. Returns false on a clean tree.
func (c *Connector) CommitChanges(ctx context.Context, plugin *models.Plugin, message string) (bool, error) {
	if _, err := c.runGit(ctx, plugin.LocalRepository, false, "add", "--all"); err != nil {
		return false, err
	}
	status, err := c.runGit(ctx, plugin.LocalRepository, false, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(status) == "" {
		c.logger.Debug().Str("plugin", plugin.Name).Msg("Nothing to commit")
		return false, nil
	}

	args := []string{}
	if c.config.CommitterName != "" {
		args = append(args, "-c", "user.name="+c.config.CommitterName)
	}
	if c.config.CommitterEmail != "" {
		args = append(args, "-c", "user.email="+c.config.CommitterEmail)
	}
	args = append(args, "commit", "--message", message)
	if _, err := c.runGit(ctx, plugin.LocalRepository, false, args...); err != nil {
		return false, err
	}
	return true, nil
}

// PushChanges force pushes HEAD to the branch of the owner's fork
func (c *Connector) PushChanges(ctx context.Context, plugin *models.Plugin, branch string) error {
	fork, err := c.GetRepositoryFork(ctx, plugin)
	if err != nil {
		return err
	}
	_, err = c.runGit(ctx, plugin.LocalRepository, true, "push", "--force", fork.CloneURL, "HEAD:refs/heads/"+branch)
	if err != nil {
		return err
	}
	c.logger.Info().Str("plugin", plugin.Name).Str("fork", fork.FullName()).Str("branch", branch).Msg("Changes pushed")
	return nil
}

// ChangedFiles stages the working copy and reports per-file line counts against HEAD
func (c *Connector) ChangedFiles(ctx context.Context, plugin *models.Plugin) ([]models.FileChange, error) {
	if _, err := c.runGit(ctx, plugin.LocalRepository, false, "add", "--all"); err != nil {
		return nil, err
	}
	out, err := c.runGit(ctx, plugin.LocalRepository, false, "diff", "--cached", "--numstat")
	if err != nil {
		return nil, err
	}
	return parseNumstat(out), nil
}

// parseNumstat reads "added<TAB>deleted<TAB>path" lines; binary files report "-" counts
func parseNumstat(out string) []models.FileChange {
	var changes []models.FileChange
	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		added, _ := strconv.Atoi(fields[0])
		deleted, _ := strconv.Atoi(fields[1])
		changes = append(changes, models.FileChange{
			Path:      fields[2],
			Additions: added,
			Deletions: deleted,
		})
	}
	return changes
}

// runGit runs git in dir. Remote operations carry the token as an extra header
// passed through GIT_CONFIG_* variables, so it is neither in argv nor in .git/config.
func (c *Connector) runGit(ctx context.Context, dir string, remote bool, args ...string) (string, error) {
	env := []string{"GIT_TERMINAL_PROMPT=0"}
	if remote && c.config.Token != "" {
		env = append(env, credentialEnv(c.config.Token)...)
	}

	result, err := c.git.Run(ctx, process.Command{
		Name:    "git",
		Args:    args,
		Dir:     dir,
		Env:     env,
		Timeout: gitTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return result.Stdout, nil
}

func credentialEnv(token string) []string {
	credentials := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
	return []string{
		"GIT_CONFIG_COUNT=1",
		"GIT_CONFIG_KEY_0=http.extraHeader",
		"GIT_CONFIG_VALUE_0=Authorization: Basic " + credentials,
	}
}
