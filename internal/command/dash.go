package command

import (
	"context"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"lintdeck/internal/cli"
	"lintdeck/internal/git"
	"lintdeck/internal/logging"
	"lintdeck/internal/process"
	"lintdeck/internal/tracker"
	"lintdeck/internal/tui"
)

const appURL = "https://app.codacy.com"

func newDashCommand(runner process.Runner) *cobra.Command {
	var noTrack bool
	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Open the interactive dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, runner)
			if err != nil {
				return err
			}
			defer a.close()

			logFile := filepath.Join(a.root, cli.Dir, cli.LogsDir, "lintdeck.log")
			out := logging.Init(logging.OffTerminal(a.config().Logging, logFile))
			defer logging.Close(out)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			deps := tui.Deps{
				Context:  ctx,
				Machine:  a.machine,
				Analyzer: a.orchestrator(),
				Tools:    a.tools(),
				AppURL:   appURL,
			}
			var t *tracker.Tracker
			if !noTrack {
				t = a.tracker()
				defer t.Close()
				deps.Tracker = t
			}

			p := tea.NewProgram(tui.New(deps), tea.WithAltScreen(), tea.WithContext(ctx))
			var notifier tui.TrackerNotifier
			if t != nil {
				notifier = t
			}
			detach := tui.Bridge(p, a.machine, notifier)
			defer detach()

			if t != nil {
				a.watch(ctx, t)
			}
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&noTrack, "no-track", false, "do not contact the Codacy API")
	return cmd
}

// watch opens the tracker in the background and keeps it in step with the
// git checkout and the config file.
func (a *app) watch(ctx context.Context, t *tracker.Tracker) {
	go func() {
		if err := t.Open(ctx); err != nil {
			a.log.WithError(err).Warn("repository tracking failed")
		}
	}()

	err := git.Watch(ctx, a.root, git.DefaultSettle, a.log, func() {
		if err := t.HandleStateChange(ctx); err != nil {
			a.log.WithError(err).Debug("handle git change")
		}
	})
	if err != nil {
		a.log.WithError(err).Warn("git changes will not be tracked")
	}

	if a.v.ConfigFileUsed() == "" {
		return
	}
	a.v.OnConfigChange(func(ev fsnotify.Event) {
		a.log.WithField("file", ev.Name).Info("configuration changed")
		if err := a.reload(); err != nil {
			a.log.WithError(err).Warn("reload configuration")
			return
		}
		// same project root, so this rebinds the machine the dashboard holds
		a.registry.Open(a.resolveIdentity(ctx))
		a.results.Purge()
		if err := t.Reset(ctx); err != nil {
			a.log.WithError(err).Warn("reset repository tracking")
		}
	})
	a.v.WatchConfig()
}
