package command

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lintdeck/internal/analysis"
	"lintdeck/internal/cache"
	"lintdeck/internal/cli"
	"lintdeck/internal/config"
	"lintdeck/internal/forge"
	"lintdeck/internal/git"
	"lintdeck/internal/logging"
	"lintdeck/internal/model"
	"lintdeck/internal/pathmap"
	"lintdeck/internal/process"
	"lintdeck/internal/remote"
	"lintdeck/internal/tracker"
)

// app is the object graph shared by every subcommand.
type app struct {
	v        *viper.Viper
	root     string
	identity model.Identity
	runner   process.Runner
	registry *cli.Registry
	machine  *cli.StateMachine
	results  *cache.Results
	log      *logrus.Entry

	mu  sync.RWMutex
	cfg *config.Config
}

// configFlags maps persistent flags onto configuration keys.
var configFlags = map[string]string{
	"log-level":   "logging.level",
	"token":       "api.token",
	"cli-version": "cli.version",
}

// newApp resolves the project, loads configuration and builds the CLI
// state machine. Tracking is built on demand by tracker().
func newApp(cmd *cobra.Command, runner process.Runner) (*app, error) {
	ctx := cmd.Context()
	dir, _ := cmd.Flags().GetString("dir")
	root, err := pathmap.ProjectRoot(ctx, dir)
	if err != nil {
		return nil, err
	}
	v := config.New(root)
	for name, key := range configFlags {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	if file, _ := cmd.Flags().GetString("config"); file != "" {
		v.SetConfigFile(file)
	}
	cfg, err := config.Load(v, root)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.Logging)
	log := logging.Component("lintdeck")

	a := &app{v: v, root: root, runner: runner, cfg: cfg, log: log}
	a.identity = a.resolveIdentity(ctx)

	platform, err := cli.PlatformFor(runtime.GOOS, cfg.CLI.Wrapper)
	if err != nil {
		return nil, err
	}
	a.registry = cli.NewRegistry(cli.Options{
		Platform:    platform,
		Runner:      runner,
		DownloadURL: cfg.CLI.DownloadURL,
		Version:     cfg.CLI.Version,
		Token:       a.token,
		Log:         logging.Component("cli"),
	})
	a.machine = a.registry.Open(a.identity)
	a.results = cache.New(cfg.Cache.MaxEntries)
	return a, nil
}

func (a *app) config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *app) token() string {
	return strings.TrimSpace(a.config().API.Token)
}

// reload re-reads configuration after the config file changed.
func (a *app) reload() error {
	cfg, err := config.Load(a.v, a.root)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	return nil
}

// resolveIdentity detects the remote repository from git and applies the
// repository overrides from configuration. Detection failures leave a
// local-only identity.
func (a *app) resolveIdentity(ctx context.Context) model.Identity {
	id, err := forge.Detect(ctx, a.root, a.runner)
	if err != nil {
		a.log.WithError(err).Debug("no remote repository detected")
	}
	return applyOverrides(id, a.config().Repository)
}

func applyOverrides(id model.Identity, o config.RepositoryConfig) model.Identity {
	if o.Provider != "" {
		id.Provider = o.Provider
	}
	if o.Organization != "" {
		id.Organization = o.Organization
	}
	if o.Name != "" {
		id.Repository = o.Name
	}
	return id
}

func (a *app) orchestrator() *analysis.Orchestrator {
	return analysis.New(a.machine, a.runner, a.results, logging.Component("analysis"),
		analysis.WithTimeout(a.config().CLI.Timeout))
}

func (a *app) api() *remote.Client {
	cfg := a.config().API
	return remote.New(cfg.BaseURL, a.token, cfg.Timeout)
}

func (a *app) tracker() *tracker.Tracker {
	tc := a.config().Tracker
	return tracker.New(tracker.Config{
		API: a.api(),
		Git: git.Open(a.root, a.runner),
		Resolve: func(ctx context.Context) (model.Identity, error) {
			id, err := forge.Detect(ctx, a.root, a.runner)
			id = applyOverrides(id, a.config().Repository)
			if err != nil && !id.Remote() {
				return id, err
			}
			return id, nil
		},
		Token: a.token,
		Options: tracker.Options{
			RetryAttempts:   tc.RetryAttempts,
			RetryDelay:      tc.RetryDelay,
			RefreshInterval: tc.RefreshInterval,
			Debounce:        tc.Debounce,
			MaxFiles:        tc.MaxFiles,
		},
		Log: logging.Component("tracker"),
	})
}

func (a *app) tools() []string {
	tools, err := cli.ReadTools(a.root)
	if err != nil {
		a.log.WithError(err).Debug("no tool list")
	}
	return tools
}

func (a *app) close() {
	a.registry.Close(a.root)
}

func describe(id model.Identity) string {
	if !id.Remote() {
		return "local"
	}
	return fmt.Sprintf("%s/%s/%s", id.Provider, id.Organization, id.Repository)
}
