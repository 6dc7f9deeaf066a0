package update

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner feeds an update script to the update mechanism and returns what
// it printed. A non-nil error means the update did not succeed.
type Runner interface {
	Run(ctx context.Context, script string) (stdout, stderr string, err error)
}

// ExecRunner runs an external binary (nsupdate by default) with the
// script on standard input. Exit status 0 is success; anything else,
// including failure to start, is an error.
type ExecRunner struct {
	Binary  string
	Args    []string
	Timeout time.Duration // 0 disables the per-invocation deadline
}

// NewExecRunner returns an ExecRunner for binary.
func NewExecRunner(binary string, args []string, timeout time.Duration) *ExecRunner {
	if binary == "" {
		binary = "nsupdate"
	}
	return &ExecRunner{Binary: binary, Args: args, Timeout: timeout}
}

// Run executes the binary. The process reads from and writes to buffers
// owned by this call, so nothing is left open on any return path.
func (r *ExecRunner) Run(ctx context.Context, script string) (string, string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, r.Args...)
	cmd.Stdin = strings.NewReader(script)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit the pipes must not hold Run open past cancellation.
	cmd.WaitDelay = 2 * time.Second

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			err = fmt.Errorf("%s: %w", r.Binary, ctx.Err())
		case errors.As(err, &exitErr):
			err = fmt.Errorf("%s exited with status %d", r.Binary, exitErr.ExitCode())
		default:
			err = fmt.Errorf("run %s: %w", r.Binary, err)
		}
	}
	return stdout.String(), stderr.String(), err
}
