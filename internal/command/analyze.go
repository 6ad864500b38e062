package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"lintdeck/internal/analysis"
	"lintdeck/internal/model"
	"lintdeck/internal/process"
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	infoStyle  = lipgloss.NewStyle().Faint(true)
	pathStyle  = lipgloss.NewStyle().Bold(true)
)

func newAnalyzeCommand(runner process.Runner) *cobra.Command {
	var (
		tool   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a file, or the whole repository, with the Codacy CLI",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, runner)
			if err != nil {
				return err
			}
			defer a.close()

			req := analysis.Request{Tool: tool}
			if len(args) == 1 {
				req.File = args[0]
			}
			findings, err := a.orchestrator().Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return writeJSON(cmd.OutOrStdout(), findings)
			case "text", "":
				writeText(cmd.OutOrStdout(), findings)
				return nil
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}
	cmd.Flags().StringVar(&tool, "tool", "", "run a single tool")
	cmd.Flags().StringVarP(&format, "format", "o", "text", "output format (text, json)")
	return cmd
}

func writeJSON(w io.Writer, findings []model.Finding) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if findings == nil {
		findings = []model.Finding{}
	}
	return enc.Encode(findings)
}

func writeText(w io.Writer, findings []model.Finding) {
	if len(findings) == 0 {
		fmt.Fprintln(w, infoStyle.Render("No findings."))
		return
	}
	for _, f := range findings {
		loc := f.FilePath
		if f.Region != nil && f.Region.StartLine > 0 {
			loc = fmt.Sprintf("%s:%d:%d", loc, f.Region.StartLine, f.Region.StartColumn)
		}
		rule := ""
		if f.Rule != nil {
			rule = " [" + f.Rule.ID + "]"
		}
		fmt.Fprintf(w, "%s %s %s%s\n", severity(f.Severity), pathStyle.Render(loc),
			strings.TrimSpace(f.Message), infoStyle.Render(" "+f.Tool+rule))
	}
	fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("%d findings", len(findings))))
}

func severity(level string) string {
	switch level {
	case "error":
		return errorStyle.Render("error  ")
	case "warning":
		return warnStyle.Render("warning")
	default:
		return infoStyle.Render(fmt.Sprintf("%-7s", level))
	}
}
