package cli

import (
	"fmt"
	"path/filepath"

	"lintdeck/internal/pathmap"
	"lintdeck/internal/process"
)

// Project-relative layout of the CLI's files.
const (
	Dir            = ".codacy"
	ScriptName     = "cli.sh"
	SettingsFile   = "codacy.yaml"
	CLIConfigFile  = "cli-config.yaml"
	ToolConfigsDir = "tools-configs"
	LogsDir        = "logs"
	GitignoreFile  = ".gitignore"
)

// VersionEnv carries the configured CLI version to every CLI invocation.
const VersionEnv = "CODACY_CLI_V2_VERSION"

// Platform builds the host-specific commands used to fetch and run the CLI.
type Platform interface {
	Name() string
	ExecutablePath(root string) string
	Download(url string) process.Command
	Chmod(path string) process.Command
	Command(cliPath string, args ...string) process.Command
	Paths() pathmap.Adapter
}

// Posix runs the CLI script directly. Prefix, when set, is prepended to
// every command (a configured wrapper).
type Posix struct {
	Prefix []string
}

func (p Posix) Name() string { return "posix" }

func (p Posix) ExecutablePath(root string) string {
	return filepath.Join(root, Dir, ScriptName)
}

func (p Posix) Download(url string) process.Command {
	return wrap(p.Prefix, "curl", "-Ls", url)
}

func (p Posix) Chmod(path string) process.Command {
	return wrap(p.Prefix, "chmod", "+x", path)
}

func (p Posix) Command(cliPath string, args ...string) process.Command {
	return wrap(p.Prefix, cliPath, args...)
}

func (p Posix) Paths() pathmap.Adapter { return pathmap.Identity{} }

// WSL runs the CLI inside a Linux subsystem from a Windows host.
type WSL struct {
	Prefix []string // defaults to ["wsl"]
}

func (w WSL) Name() string { return "wsl" }

func (w WSL) ExecutablePath(root string) string {
	return filepath.Join(root, Dir, ScriptName)
}

func (w WSL) Download(url string) process.Command {
	return wrap(w.prefix(), "curl", "-Ls", url)
}

func (w WSL) Chmod(path string) process.Command {
	return wrap(w.prefix(), "chmod", "+x", w.Paths().ToToolPath(path))
}

func (w WSL) Command(cliPath string, args ...string) process.Command {
	return wrap(w.prefix(), "bash", append([]string{w.Paths().ToToolPath(cliPath)}, args...)...)
}

func (w WSL) Paths() pathmap.Adapter { return pathmap.WSL{} }

func (w WSL) prefix() []string {
	if len(w.Prefix) == 0 {
		return []string{"wsl"}
	}
	return w.Prefix
}

// PlatformFor selects the platform for goos. wrapper is an optional command
// line prepended to every invocation.
func PlatformFor(goos, wrapper string) (Platform, error) {
	var prefix []string
	if wrapper != "" {
		args, err := process.Split(wrapper)
		if err != nil {
			return nil, fmt.Errorf("cli wrapper: %w", err)
		}
		prefix = args
	}
	if goos == "windows" {
		return WSL{Prefix: prefix}, nil
	}
	return Posix{Prefix: prefix}, nil
}

func wrap(prefix []string, name string, args ...string) process.Command {
	if len(prefix) == 0 {
		return process.Command{Name: name, Args: args}
	}
	all := make([]string, 0, len(prefix)-1+1+len(args))
	all = append(all, prefix[1:]...)
	all = append(all, name)
	all = append(all, args...)
	return process.Command{Name: prefix[0], Args: all}
}
