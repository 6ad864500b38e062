package cli

import (
	"errors"
	"fmt"

	"lintdeck/internal/process"
)

// ErrNotReady is returned by Analyze when the CLI could not reach the
// Initialized state.
var ErrNotReady = errors.New("codacy cli is not initialized")

// InstallFailed reports a failed download or chmod step.
type InstallFailed struct {
	Step     string
	ExitCode int
	Err      error
}

func (e *InstallFailed) Error() string {
	return fmt.Sprintf("install codacy cli (%s, exit code %d): %v", e.Step, e.ExitCode, e.Err)
}

func (e *InstallFailed) Unwrap() error { return e.Err }

// InitializationFailed reports a failed init or install subcommand.
type InitializationFailed struct {
	Step     string
	ExitCode int
	Err      error
}

func (e *InitializationFailed) Error() string {
	return fmt.Sprintf("initialize codacy cli (%s, exit code %d): %v", e.Step, e.ExitCode, e.Err)
}

func (e *InitializationFailed) Unwrap() error { return e.Err }

func exitCode(err error) int {
	var failed *process.ExecutionFailed
	if errors.As(err, &failed) {
		return failed.ExitCode
	}
	return -1
}
