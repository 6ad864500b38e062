package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"lintdeck/internal/cli"
	"lintdeck/internal/process"
)

func newPrepareCommand(runner process.Runner) *cobra.Command {
	var detectOnly bool
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Install and initialize the Codacy CLI for the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, runner)
			if err != nil {
				return err
			}
			defer a.close()

			a.machine.Subscribe(func(s cli.State) {
				a.log.WithField("state", s).Info("codacy cli state")
			})
			state, err := a.machine.Prepare(cmd.Context(), !detectOnly)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", a.root, state, describe(a.machine.Identity()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&detectOnly, "detect", false, "only detect an existing installation")
	return cmd
}
