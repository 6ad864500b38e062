package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"lintdeck/internal/cli"
	"lintdeck/internal/git"
	"lintdeck/internal/model"
	"lintdeck/internal/tracker"
)

// Machine is the CLI lifecycle shown by the dashboard.
type Machine interface {
	State() cli.State
	Err() error
	Identity() model.Identity
}

// Tracker is the repository state shown by the dashboard.
type Tracker interface {
	RepositoryState() tracker.RepositoryState
	BranchState() tracker.BranchState
	Head() git.Head
	PullRequest() *tracker.PullRequest
}

// Status is everything the dashboard and the status command print.
type Status struct {
	Root        string
	CLI         cli.State
	CLIErr      error
	Tools       []string
	Repository  tracker.RepositoryState
	Branch      tracker.BranchState
	Head        git.Head
	PullRequest *tracker.Snapshot
	PRNumber    int
	Tracked     bool
}

// ReadStatus collects a Status. t may be nil when tracking is off.
func ReadStatus(m Machine, t Tracker, tools []string) Status {
	s := Status{
		Root:   m.Identity().ProjectRoot,
		CLI:    m.State(),
		CLIErr: m.Err(),
		Tools:  tools,
	}
	if t == nil {
		return s
	}
	s.Tracked = true
	s.Repository = t.RepositoryState()
	s.Branch = t.BranchState()
	s.Head = t.Head()
	if pr := t.PullRequest(); pr != nil {
		snap := pr.Snapshot()
		s.PullRequest = &snap
		s.PRNumber = pr.Number
	}
	return s
}

func cliStateLabel(s cli.State) string {
	switch s {
	case cli.Initialized:
		return okStyle.Render("● ready")
	case cli.Analyzing:
		return warnStyle.Render("⏳ analyzing")
	case cli.Installing:
		return warnStyle.Render("⏳ installing")
	case cli.Installed:
		return warnStyle.Render("installed, not configured")
	case cli.Error:
		return errStyle.Render("❌ error")
	default:
		return dimStyle.Render("not installed")
	}
}

func repoStateLabel(s tracker.RepositoryState) string {
	switch s {
	case tracker.Loaded:
		return okStyle.Render("loaded")
	case tracker.NeedsAuthentication:
		return warnStyle.Render("sign in required")
	case tracker.NoGitRepository:
		return dimStyle.Render("not a git repository")
	case tracker.NoRepository:
		return dimStyle.Render("not on Codacy")
	default:
		return dimStyle.Render("loading…")
	}
}

func branchStateLabel(s tracker.BranchState) string {
	switch s {
	case tracker.OnPullRequestBranch:
		return okStyle.Render("pull request branch")
	case tracker.OnAnalysedBranch:
		return okStyle.Render("analysed")
	case tracker.OnAnalysedBranchOutdated:
		return warnStyle.Render("analysed, outdated")
	default:
		return dimStyle.Render("unknown to Codacy")
	}
}

// RenderStatus formats s for a panel of the given width.
func RenderStatus(s Status, width int) string {
	row := func(lbl, val string) string {
		return labelStyle.Render(lbl) + val + "\n"
	}

	var b strings.Builder
	b.WriteString(detailHeadStyle.Render("Codacy CLI") + "\n\n")
	b.WriteString(row("Project  ", s.Root))
	b.WriteString(row("CLI      ", cliStateLabel(s.CLI)))
	if s.CLIErr != nil {
		b.WriteString(row("         ", errStyle.Render(truncate(s.CLIErr.Error(), width-9))))
	}
	if len(s.Tools) > 0 {
		b.WriteString(row("Tools    ", strings.Join(s.Tools, ", ")))
	}
	if !s.Tracked {
		return b.String()
	}

	b.WriteString("\n" + detailHeadStyle.Render("Repository") + "\n\n")
	b.WriteString(row("State    ", repoStateLabel(s.Repository)))
	branch := s.Head.Branch
	if s.Head.Detached() {
		branch = dimStyle.Render("detached")
	}
	b.WriteString(row("Branch   ", branch))
	if s.Head.Commit != "" {
		b.WriteString(row("Commit   ", shortSHA(s.Head.Commit)+aheadBehind(s.Head)))
	}
	b.WriteString(row("Analysis ", branchStateLabel(s.Branch)))

	if s.PullRequest != nil {
		b.WriteString("\n")
		b.WriteString(renderPullRequest(s.PRNumber, *s.PullRequest, width))
	}
	return b.String()
}

func renderPullRequest(number int, pr tracker.Snapshot, width int) string {
	row := func(lbl, val string) string {
		return labelStyle.Render(lbl) + val + "\n"
	}
	var b strings.Builder

	b.WriteString(row("PR       ", fmt.Sprintf("#%d", number)))
	b.WriteString("         " + truncate(pr.Analysis.PullRequest.Title, width-9) + "\n")

	var quality string
	switch {
	case pr.Analysing:
		quality = warnStyle.Render("⏳ analysing")
	case pr.Analysis.IsUpToStandards == nil:
		quality = dimStyle.Render("—")
	case *pr.Analysis.IsUpToStandards:
		quality = okStyle.Render("✅ up to standards")
	default:
		quality = errStyle.Render("❌ not up to standards")
	}
	b.WriteString(row("Quality  ", quality))

	if head := pr.HeadCommit(); head != "" {
		commits := shortSHA(head)
		if base := pr.BaseCommit(); base != "" {
			commits = shortSHA(base) + ".." + commits
		}
		b.WriteString(row("Commits  ", commits))
	}

	if n := pr.Analysis.NewIssues; n != nil {
		b.WriteString(row("New      ", fmt.Sprintf("%d issues", *n)))
	}
	if n := pr.Analysis.FixedIssues; n != nil {
		b.WriteString(row("Fixed    ", fmt.Sprintf("%d issues", *n)))
	}
	if pr.Coverage != nil && pr.Coverage.DiffCoverage != nil {
		b.WriteString(row("Coverage ", fmt.Sprintf("%.1f%% of diff", *pr.Coverage.DiffCoverage)))
	}
	if len(pr.Files) > 0 {
		b.WriteString(row("Files    ", fmt.Sprintf("%d changed", len(pr.Files))))
	}
	return b.String()
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func aheadBehind(h git.Head) string {
	if h.Upstream == "" {
		return ""
	}
	return dimStyle.Render(fmt.Sprintf("  ↑%d ↓%d", h.Ahead, h.Behind))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 1 || len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// PlainStatus renders s without a panel border for non-interactive output.
func PlainStatus(s Status) string {
	return lipgloss.NewStyle().Padding(0, 1).Render(RenderStatus(s, 80))
}
