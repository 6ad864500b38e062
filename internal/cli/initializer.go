package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"lintdeck/internal/model"
	"lintdeck/internal/process"
)

// Modes declared in cli-config.yaml.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

const scriptIgnorePattern = "*.sh"

type cliConfig struct {
	Mode string `yaml:"mode"`
}

// Initializer makes sure the project-local CLI configuration exists and
// matches the bound identity.
type Initializer struct {
	platform Platform
	runner   process.Runner
	env      map[string]string
	log      *logrus.Entry
}

func NewInitializer(platform Platform, runner process.Runner, env map[string]string, log *logrus.Entry) *Initializer {
	return &Initializer{
		platform: platform,
		runner:   runner,
		env:      env,
		log:      log,
	}
}

// Initialized reports whether every settings artifact is present and the
// declared mode matches id: remote when a repository is bound and a token
// is available, local otherwise. It has no side effects.
func (in *Initializer) Initialized(id model.Identity, token string) bool {
	base := filepath.Join(id.ProjectRoot, Dir)
	if !fileExists(filepath.Join(base, SettingsFile)) ||
		!fileExists(filepath.Join(base, CLIConfigFile)) ||
		!dirExists(filepath.Join(base, ToolConfigsDir)) ||
		!dirExists(filepath.Join(base, LogsDir)) {
		return false
	}
	mode, err := ReadMode(id.ProjectRoot)
	if err != nil {
		in.log.WithError(err).Debug("unreadable cli config")
		return false
	}
	return mode == expectedMode(id, token)
}

// EnsureInitialized runs `init` and `install` when the configuration is
// missing or inconsistent. Failures are returned as *InitializationFailed.
func (in *Initializer) EnsureInitialized(ctx context.Context, id model.Identity, cliPath, token string) (bool, error) {
	if in.Initialized(id, token) {
		return true, in.ensureGitignore(id.ProjectRoot)
	}

	mode := expectedMode(id, token)
	if id.Remote() && mode == ModeLocal {
		in.log.WithField("project", id.ProjectRoot).Warn("no api token configured, initializing codacy cli in local mode")
	}
	args := []string{"init"}
	if mode == ModeRemote {
		args = append(args,
			"--provider", id.Provider,
			"--organization", id.Organization,
			"--repository", id.Repository,
			"--api-token", token,
		)
	}
	log := in.log.WithFields(logrus.Fields{"project": id.ProjectRoot, "mode": mode})
	log.Info("initializing codacy cli")

	if err := in.run(ctx, id, cliPath, args...); err != nil {
		return false, &InitializationFailed{Step: "init", ExitCode: exitCode(err), Err: err}
	}
	if err := in.run(ctx, id, cliPath, "install"); err != nil {
		return false, &InitializationFailed{Step: "install", ExitCode: exitCode(err), Err: err}
	}
	if err := in.ensureGitignore(id.ProjectRoot); err != nil {
		return false, &InitializationFailed{Step: "gitignore", ExitCode: -1, Err: err}
	}
	log.Info("codacy cli initialized")
	return true, nil
}

func (in *Initializer) run(ctx context.Context, id model.Identity, cliPath string, args ...string) error {
	cmd := in.platform.Command(cliPath, args...)
	cmd.Dir = id.ProjectRoot
	cmd.Env = in.env
	_, err := in.runner.Run(ctx, cmd)
	return err
}

// ensureGitignore appends the script pattern to .codacy/.gitignore unless
// the file already ignores the CLI script.
func (in *Initializer) ensureGitignore(root string) error {
	path := filepath.Join(root, Dir, GitignoreFile)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err == nil {
		gi, cerr := ignore.CompileIgnoreFile(path)
		if cerr == nil && gi.MatchesPath(ScriptName) {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	line := scriptIgnorePattern + "\n"
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}

// ReadMode returns the mode declared in .codacy/cli-config.yaml.
func ReadMode(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, Dir, CLIConfigFile))
	if err != nil {
		return "", err
	}
	var cfg cliConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("parse %s: %w", CLIConfigFile, err)
	}
	return strings.TrimSpace(cfg.Mode), nil
}

// expectedMode is remote only when init can be given every remote flag.
func expectedMode(id model.Identity, token string) string {
	if id.Remote() && strings.TrimSpace(token) != "" {
		return ModeRemote
	}
	return ModeLocal
}
