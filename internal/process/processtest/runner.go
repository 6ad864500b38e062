// Package processtest provides a scriptable process.Runner for tests.
package processtest

import (
	"context"
	"sync"

	"lintdeck/internal/process"
)

// Handler answers one command.
type Handler func(ctx context.Context, cmd process.Command) (process.Result, error)

// Runner records every command and answers with Handler. A nil Handler
// succeeds with empty output.
type Runner struct {
	Handler Handler

	mu    sync.Mutex
	calls []process.Command
}

func (r *Runner) Run(ctx context.Context, cmd process.Command) (process.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	h := r.Handler
	r.mu.Unlock()
	if h == nil {
		return process.Result{}, nil
	}
	return h(ctx, cmd)
}

// Calls returns a copy of the recorded commands.
func (r *Runner) Calls() []process.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]process.Command(nil), r.calls...)
}

// Count returns how many recorded commands satisfy match.
func (r *Runner) Count(match func(process.Command) bool) int {
	n := 0
	for _, c := range r.Calls() {
		if match(c) {
			n++
		}
	}
	return n
}

// Fail returns the error a real runner reports for a non-zero exit.
func Fail(cmd process.Command, code int, stderr string) (process.Result, error) {
	return process.Result{ExitCode: code, Stderr: []byte(stderr)},
		&process.ExecutionFailed{Command: cmd.String(), ExitCode: code, Stderr: stderr}
}

// Subcommand returns the first argument after the executable for commands
// built by the posix platform, or "" when there is none.
func Subcommand(cmd process.Command) string {
	if len(cmd.Args) == 0 {
		return ""
	}
	return cmd.Args[0]
}
