// Package process runs external tools (git, mvn) with bounded output capture.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// DefaultMaxOutput is how many trailing bytes of each stream are kept
const DefaultMaxOutput = 64 * 1024

// Command describes one process invocation
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string // Appended to the current environment
	Timeout time.Duration
}

// String renders the command line for logs. Values of credential bearing
// config arguments are replaced with a placeholder.
func (c Command) String() string {
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = redact(arg)
	}
	return strings.TrimSpace(c.Name + " " + strings.Join(args, " "))
}

// redactedKeys are git config keys whose values hold credentials
var redactedKeys = []string{"http.extraheader=", "credential.helper="}

func redact(arg string) string {
	lower := strings.ToLower(arg)
	for _, key := range redactedKeys {
		if strings.HasPrefix(lower, key) {
			return arg[:len(key)] + "<redacted>"
		}
	}
	return arg
}

// Result is the captured outcome of a finished process
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExitError is returned when the process ran but exited non-zero
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, e.Output)
}

// Runner executes commands
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands on the host with os/exec
type ExecRunner struct {
	logger    arbor.ILogger
	maxOutput int
}

// NewExecRunner creates a runner keeping at most maxOutput trailing bytes per stream
func NewExecRunner(logger arbor.ILogger, maxOutput int) *ExecRunner {
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}
	return &ExecRunner{logger: logger, maxOutput: maxOutput}
}

// Run starts the command and waits for it. A non-zero exit yields *ExitError
// together with the captured result.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	execCmd.Dir = cmd.Dir
	execCmd.WaitDelay = 5 * time.Second // Children holding the pipes open must not block Wait forever
	if len(cmd.Env) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Env...)
	}

	stdout := &tailBuffer{max: r.maxOutput}
	stderr := &tailBuffer{max: r.maxOutput}
	execCmd.Stdout = stdout
	execCmd.Stderr = stderr

	r.logger.Debug().Str("command", cmd.String()).Str("dir", cmd.Dir).Msg("Running command")

	started := time.Now()
	err := execCmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s: %w", cmd.Name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &ExitError{
				Command:  cmd.Name,
				ExitCode: result.ExitCode,
				Output:   lastLines(result.Stderr+result.Stdout, 20),
			}
		}
		return result, fmt.Errorf("failed to run %s: %w", cmd.Name, err)
	}

	r.logger.Debug().Str("command", cmd.Name).Str("elapsed", result.Duration.String()).Msg("Command finished")
	return result, nil
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	buf       []byte
	max       int
	truncated bool
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
		t.truncated = true
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
