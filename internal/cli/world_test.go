package cli

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"lintdeck/internal/model"
	"lintdeck/internal/process"
	"lintdeck/internal/process/processtest"
)

const fakeScript = "#!/bin/sh\necho codacy\n"

// fakeCLI answers curl, chmod and the CLI subcommands the way the real
// tools would, writing the files init produces.
func fakeCLI(root string) *processtest.Runner {
	return &processtest.Runner{Handler: func(_ context.Context, cmd process.Command) (process.Result, error) {
		switch {
		case cmd.Name == "curl":
			return process.Result{Stdout: []byte(fakeScript)}, nil
		case cmd.Name == "chmod":
			return process.Result{}, os.Chmod(cmd.Args[len(cmd.Args)-1], 0o755)
		case strings.HasSuffix(cmd.Name, ScriptName):
			if processtest.Subcommand(cmd) == "init" {
				return process.Result{}, writeInitFiles(root, slices.Contains(cmd.Args, "--repository"))
			}
			return process.Result{}, nil
		}
		return process.Result{}, nil
	}}
}

func writeInitFiles(root string, remote bool) error {
	base := filepath.Join(root, Dir)
	for _, d := range []string{ToolConfigsDir, LogsDir} {
		if err := os.MkdirAll(filepath.Join(base, d), 0o755); err != nil {
			return err
		}
	}
	mode := ModeLocal
	if remote {
		mode = ModeRemote
	}
	if err := os.WriteFile(filepath.Join(base, SettingsFile), []byte("tools:\n  - eslint@8.57.0\n"), 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(base, CLIConfigFile), []byte("mode: "+mode+"\n"), 0o644)
}

func isDownload(c process.Command) bool { return c.Name == "curl" }
func isInit(c process.Command) bool {
	return strings.HasSuffix(c.Name, ScriptName) && processtest.Subcommand(c) == "init"
}

func quietLog() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

func remoteIdentity(root string) model.Identity {
	return model.Identity{Provider: "gh", Organization: "acme", Repository: "web", ProjectRoot: root}
}

func newMachine(t *testing.T, id model.Identity, runner process.Runner) *StateMachine {
	t.Helper()
	return NewStateMachine(id, Options{
		Platform:    Posix{},
		Runner:      runner,
		DownloadURL: "https://example.invalid/cli.sh",
		Version:     "1.2.3",
		Token:       func() string { return "secret" },
		Log:         quietLog(),
	})
}
