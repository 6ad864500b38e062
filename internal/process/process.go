// Package process runs external commands as argv vectors and reports
// spawn failures separately from non-zero exits.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Command describes one subprocess invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries override or extend the inherited environment.
	Env map[string]string
	// MergeStderr sends stderr into Stdout, as CombinedOutput does.
	MergeStderr bool
}

// String renders the command for logs and error messages.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the outcome of a command that was spawned.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner executes commands. Implementations block until the process exits
// or ctx is done.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// LaunchError means the executable could not be started at all.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExecutionFailed means the process ran and exited non-zero.
type ExecutionFailed struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExecutionFailed) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, trimOutput(msg))
}

// Exec is the os/exec backed Runner.
type Exec struct{}

// Run starts cmd and waits for it. There is no default timeout; callers
// bound the wait through ctx.
func (Exec) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), envList(cmd.Env)...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	if cmd.MergeStderr {
		c.Stderr = &stdout
	} else {
		c.Stderr = &stderr
	}

	if err := c.Start(); err != nil {
		return Result{ExitCode: -1}, &LaunchError{Command: cmd.String(), Err: err}
	}
	err := c.Wait()
	res := Result{
		ExitCode: c.ProcessState.ExitCode(),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return res, &LaunchError{Command: cmd.String(), Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%s: %w", cmd.String(), ctxErr)
	}
	return res, &ExecutionFailed{
		Command:  cmd.String(),
		ExitCode: res.ExitCode,
		Stderr:   string(res.Stderr),
	}
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func trimOutput(s string) string {
	if len(s) > 2000 {
		return s[:2000] + "…"
	}
	return s
}
