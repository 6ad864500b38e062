// Package command holds the lintdeck cobra commands.
package command

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lintdeck/internal/process"
)

// NewRootCommand builds the lintdeck command tree. runner executes every
// external command; nil uses the operating system.
func NewRootCommand(runner process.Runner) *cobra.Command {
	if runner == nil {
		runner = process.Exec{}
	}
	root := &cobra.Command{
		Use:           "lintdeck",
		Short:         "Keep the Codacy CLI ready and track pull request analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringP("dir", "C", ".", "project directory")
	flags.String("config", "", "config file (default: lintdeck.yaml in the project or user config dir)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("token", "", "Codacy API token")
	flags.String("cli-version", "", "Codacy CLI version to pin")

	root.AddCommand(
		newDashCommand(runner),
		newPrepareCommand(runner),
		newAnalyzeCommand(runner),
		newStatusCommand(runner),
	)
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := NewRootCommand(nil).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
