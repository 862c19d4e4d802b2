package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/infrastructure/security"
	"github.com/doeshing/opsguard/internal/ports"
)

const maxOutput = 64 * 1024

// LocalExecutor runs approved tool calls on the host shell by executing their
// canonical command.
type LocalExecutor struct {
	shell   string
	timeout time.Duration
	dryRun  bool
}

// Option customizes a LocalExecutor.
type Option func(*LocalExecutor)

// WithTimeout bounds every command.
func WithTimeout(d time.Duration) Option {
	return func(e *LocalExecutor) { e.timeout = d }
}

// WithDryRun reports commands as successful without running them.
func WithDryRun(enabled bool) Option {
	return func(e *LocalExecutor) { e.dryRun = enabled }
}

// NewLocalExecutor builds a new executor, shell defaults to /bin/sh.
func NewLocalExecutor(shell string, opts ...Option) *LocalExecutor {
	if shell == "" {
		shell = "/bin/sh"
	}
	e := &LocalExecutor{shell: shell, timeout: domain.DefaultCommandTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements ports.ToolExecutor.
func (e *LocalExecutor) Execute(ctx context.Context, call domain.ToolCall) (domain.ExecutionResult, error) {
	canonical, err := security.Canonicalize(call)
	if err != nil {
		return domain.ExecutionResult{ToolCall: call, Err: err}, err
	}
	result, err := e.run(ctx, canonical.Command, canonical.WorkDir)
	result.ToolCall = call
	return result, err
}

// Run implements ports.CommandRunner.
func (e *LocalExecutor) Run(ctx context.Context, command string) (domain.ExecutionResult, error) {
	return e.run(ctx, command, "")
}

// run executes command in dir, or in the process working directory when dir
// is empty.
func (e *LocalExecutor) run(ctx context.Context, command, dir string) (domain.ExecutionResult, error) {
	result := domain.ExecutionResult{Command: command}
	if e.dryRun {
		result.Success = true
		result.Output = "dry run: " + command
		return result, nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, e.shell, "-c", command)
	c.Dir = dir
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out
	// Children that inherit the pipes must not hold Run open past cancellation.
	c.WaitDelay = time.Second

	start := time.Now()
	err := c.Run()
	result.Duration = time.Since(start)
	result.Output = truncate(out.String())

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Success = true
		return result, nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%s: timed out after %s", command, e.timeout)
	case errors.As(err, &exitErr):
		err = fmt.Errorf("%s: exit status %d", command, exitErr.ExitCode())
	default:
		err = fmt.Errorf("%s: %w", command, err)
	}
	result.Err = err
	return result, err
}

func truncate(s string) string {
	if len(s) <= maxOutput {
		return s
	}
	return s[:maxOutput] + "\n[output truncated]"
}

var (
	_ ports.ToolExecutor  = (*LocalExecutor)(nil)
	_ ports.CommandRunner = (*LocalExecutor)(nil)
)
