package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"lintdeck/internal/process"
	"lintdeck/internal/tui"
)

func newStatusCommand(runner process.Runner) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the CLI, repository and pull request state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, runner)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.machine.Prepare(cmd.Context(), false); err != nil {
				return err
			}
			if offline {
				fmt.Fprintln(cmd.OutOrStdout(), tui.PlainStatus(tui.ReadStatus(a.machine, nil, a.tools())))
				return nil
			}

			t := a.tracker()
			defer t.Close()
			if err := t.Open(cmd.Context()); err != nil {
				a.log.WithError(err).Warn("repository tracking failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.PlainStatus(tui.ReadStatus(a.machine, t, a.tools())))
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the Codacy API")
	return cmd
}
