package tui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lintdeck/internal/analysis"
	"lintdeck/internal/cli"
	"lintdeck/internal/model"
)

// — state ———————————————————————————————————————————————————————————————————

type appState int

const (
	stateNormal appState = iota
	stateAnalyzeFile
)

// — styles ——————————————————————————————————————————————————————————————————

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	dimStyle  = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			PaddingLeft(2)

	detailHeadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().Faint(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3).
			Width(58)
)

// — spinner —————————————————————————————————————————————————————————————————

var spinnerFrames = []string{"|", "/", "-", "\\"}

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// — messages ————————————————————————————————————————————————————————————————

// StatusChangedMsg tells the dashboard to re-read CLI and repository state.
type StatusChangedMsg struct{}

// AnalysisCompletedMsg reports a finished remote pull request analysis.
type AnalysisCompletedMsg struct{ Number int }

type preparedMsg struct {
	state cli.State
	err   error
}

type analyzedMsg struct {
	req      analysis.Request
	findings []model.Finding
	err      error
}

type reloadedMsg struct{ err error }

// — dependencies ————————————————————————————————————————————————————————————

// Lifecycle is the CLI state machine as the dashboard drives it.
type Lifecycle interface {
	Machine
	Prepare(ctx context.Context, autoInstall bool) (cli.State, error)
}

// Analyzer runs analyses.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) ([]model.Finding, error)
}

// PullRequests is the tracker as the dashboard drives it.
type PullRequests interface {
	Tracker
	LoadPullRequest(ctx context.Context) error
}

// Deps are the collaborators of the dashboard. Tracker may be nil.
type Deps struct {
	Context  context.Context
	Machine  Lifecycle
	Analyzer Analyzer
	Tracker  PullRequests
	Tools    []string
	// AppURL is the web UI base used to open pull requests.
	AppURL string
}

// — list item ———————————————————————————————————————————————————————————————

type findingItem struct {
	f model.Finding
}

func (i findingItem) Title() string {
	return severityLabel(i.f.Severity) + " " + location(i.f)
}

func (i findingItem) Description() string { return i.f.Message }
func (i findingItem) FilterValue() string  { return i.f.Message }

func location(f model.Finding) string {
	loc := f.FilePath
	if loc == "" {
		loc = "(repository)"
	}
	if f.Region != nil && f.Region.StartLine > 0 {
		loc = fmt.Sprintf("%s:%d", loc, f.Region.StartLine)
	}
	return loc
}

func severityLabel(level string) string {
	switch level {
	case "error":
		return errStyle.Render("E")
	case "warning":
		return warnStyle.Render("W")
	default:
		return dimStyle.Render("I")
	}
}

// — model ———————————————————————————————————————————————————————————————————

type Model struct {
	deps     Deps
	list     list.Model
	findings []model.Finding
	status   Status
	width    int
	height   int
	running  int
	lastReq  *analysis.Request
	err      error
	notice   string

	state        appState
	fileInput    textinput.Model
	inputErr     string
	spinnerFrame int
	tool         int // index into deps.Tools; -1 runs every tool
}

func New(deps Deps) Model {
	if deps.Context == nil {
		deps.Context = context.Background()
	}

	delegate := list.NewDefaultDelegate()

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Findings"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = titleStyle

	ti := textinput.New()
	ti.Placeholder = "e.g. src/main.go"
	ti.CharLimit = 400

	m := Model{
		deps:      deps,
		list:      l,
		fileInput: ti,
		tool:      -1,
	}
	m.readStatus()
	return m
}

func (m *Model) readStatus() {
	var t Tracker
	if m.deps.Tracker != nil {
		t = m.deps.Tracker
	}
	m.status = ReadStatus(m.deps.Machine, t, m.deps.Tools)
}

func (m Model) selectedTool() string {
	if m.tool < 0 || m.tool >= len(m.deps.Tools) {
		return ""
	}
	return m.deps.Tools[m.tool]
}

// — commands ————————————————————————————————————————————————————————————————

func (m Model) prepareCmd() tea.Cmd {
	ctx, machine := m.deps.Context, m.deps.Machine
	return func() tea.Msg {
		state, err := machine.Prepare(ctx, true)
		return preparedMsg{state: state, err: err}
	}
}

func (m Model) detectCmd() tea.Cmd {
	ctx, machine := m.deps.Context, m.deps.Machine
	return func() tea.Msg {
		state, err := machine.Prepare(ctx, false)
		return preparedMsg{state: state, err: err}
	}
}

func (m Model) analyzeCmd(req analysis.Request) tea.Cmd {
	ctx, analyzer := m.deps.Context, m.deps.Analyzer
	return func() tea.Msg {
		findings, err := analyzer.Analyze(ctx, req)
		return analyzedMsg{req: req, findings: findings, err: err}
	}
}

func (m Model) reloadCmd() tea.Cmd {
	ctx, t := m.deps.Context, m.deps.Tracker
	return func() tea.Msg {
		return reloadedMsg{err: t.LoadPullRequest(ctx)}
	}
}

func openURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
		default:
			cmd = exec.Command("xdg-open", url)
		}
		cmd.Run()
		return nil
	}
}

func (m *Model) buildItems() {
	items := make([]list.Item, len(m.findings))
	for i, f := range m.findings {
		items[i] = findingItem{f: f}
	}
	m.list.SetItems(items)
}

func (m Model) pullRequestURL() string {
	if m.deps.AppURL == "" || m.status.PullRequest == nil {
		return ""
	}
	id := m.deps.Machine.Identity()
	return fmt.Sprintf("%s/%s/%s/%s/pull-requests/%d",
		strings.TrimRight(m.deps.AppURL, "/"), id.Provider, id.Organization, id.Repository, m.status.PRNumber)
}

// — tea.Model ———————————————————————————————————————————————————————————————

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.detectCmd(), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		lw, lh := m.listDimensions()
		m.list.SetSize(lw, lh)
		return m, nil

	case tickMsg:
		if m.busy() {
			m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		}
		return m, tickCmd()

	case StatusChangedMsg:
		m.readStatus()
		return m, nil

	case AnalysisCompletedMsg:
		m.readStatus()
		m.notice = fmt.Sprintf("Pull request #%d analysed", msg.Number)
		return m, nil

	case preparedMsg:
		m.readStatus()
		m.err = msg.err
		return m, nil

	case analyzedMsg:
		m.running--
		m.readStatus()
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		req := msg.req
		m.lastReq = &req
		m.findings = msg.findings
		m.notice = fmt.Sprintf("%d findings", len(msg.findings))
		m.buildItems()
		return m, nil

	case reloadedMsg:
		m.readStatus()
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil
	}

	switch m.state {
	case stateAnalyzeFile:
		return m.updateAnalyzeFile(msg)
	default:
		return m.updateNormal(msg)
	}
}

func (m Model) busy() bool {
	return m.running > 0 || m.status.CLI == cli.Installing || m.status.CLI == cli.Analyzing
}

func (m Model) updateNormal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "i":
			m.err = nil
			return m, m.prepareCmd()
		case "r":
			m.err = nil
			m.running++
			return m, m.analyzeCmd(analysis.Request{Tool: m.selectedTool()})
		case "a":
			m.state = stateAnalyzeFile
			m.inputErr = ""
			m.fileInput.Reset()
			m.fileInput.Focus()
			return m, textinput.Blink
		case "t":
			if len(m.deps.Tools) > 0 {
				m.tool++
				if m.tool >= len(m.deps.Tools) {
					m.tool = -1
				}
			}
			return m, nil
		case "u":
			if m.deps.Tracker != nil {
				return m, m.reloadCmd()
			}
			return m, nil
		case "o":
			if url := m.pullRequestURL(); url != "" {
				return m, openURLCmd(url)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateAnalyzeFile(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.state = stateNormal
			m.inputErr = ""
			m.fileInput.Blur()
			return m, nil
		case "enter":
			file := strings.TrimSpace(m.fileInput.Value())
			if file == "" {
				m.inputErr = "file path cannot be empty"
				return m, nil
			}
			m.state = stateNormal
			m.inputErr = ""
			m.err = nil
			m.fileInput.Blur()
			m.running++
			return m, m.analyzeCmd(analysis.Request{File: file, Tool: m.selectedTool()})
		}
	}
	var cmd tea.Cmd
	m.fileInput, cmd = m.fileInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderList(), m.renderDetail())
	base := lipgloss.JoinVertical(lipgloss.Left, body, m.renderHelp())

	if m.state == stateAnalyzeFile {
		return m.renderAnalyzeModal()
	}
	return base
}

// — layout helpers ——————————————————————————————————————————————————————————

func (m Model) listDimensions() (width, height int) {
	return m.width / 2, m.height - 3
}

func (m Model) renderList() string {
	lw, lh := m.listDimensions()
	if len(m.findings) == 0 {
		msg := "No analysis yet. Press r or a."
		if m.lastReq != nil {
			msg = "No findings."
		}
		return lipgloss.NewStyle().Width(lw).Height(lh).PaddingLeft(2).Render(
			titleStyle.Render("Findings") + "\n\n" + dimStyle.Render(msg))
	}
	return m.list.View()
}

func (m Model) renderDetail() string {
	lw, _ := m.listDimensions()
	dw := m.width - lw
	dh := m.height - 3

	style := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		PaddingLeft(3).
		PaddingRight(2).
		Width(dw - 1).
		Height(dh)

	// Width of inner text area: box width minus padding
	contentWidth := (dw - 1) - 3 - 2

	var b strings.Builder
	b.WriteString(RenderStatus(m.status, contentWidth))

	sep := dimStyle.Render(strings.Repeat("─", max(contentWidth, 0)))
	if f := m.selectedFinding(); f != nil {
		b.WriteString("\n" + sep + "\n\n")
		b.WriteString(renderFinding(*f, contentWidth))
	}
	return style.Render(b.String())
}

func renderFinding(f model.Finding, width int) string {
	row := func(lbl, val string) string {
		return labelStyle.Render(lbl) + val + "\n"
	}
	var b strings.Builder
	b.WriteString(row("Tool     ", f.Tool))
	if f.Rule != nil {
		name := f.Rule.ID
		if f.Rule.Name != "" {
			name += " (" + f.Rule.Name + ")"
		}
		b.WriteString(row("Rule     ", truncate(name, width-9)))
		if f.Rule.HelpURI != "" {
			b.WriteString(row("Help     ", dimStyle.Render(truncate(f.Rule.HelpURI, width-9))))
		}
	}
	b.WriteString(row("Severity ", f.Severity))
	b.WriteString(row("Where    ", location(f)))
	b.WriteString("\n" + lipgloss.NewStyle().Width(max(width, 10)).Render(f.Message) + "\n")
	return b.String()
}

func (m Model) renderHelp() string {
	var line string
	switch {
	case m.err != nil:
		line = errStyle.Render(truncate(m.err.Error(), m.width-2))
	case m.busy():
		line = warnStyle.Render(spinnerFrames[m.spinnerFrame] + " working…")
	case m.notice != "":
		line = dimStyle.Render(m.notice)
	}
	tool := "all tools"
	if t := m.selectedTool(); t != "" {
		tool = t
	}
	text := "↑/↓ navigate   r analyze repo   a analyze file   t tool: " + tool +
		"   i install   u refresh PR   o open PR   q quit"
	sep := dimStyle.Render(strings.Repeat("─", m.width))
	return sep + "\n" + helpStyle.Render(line) + "\n" + helpStyle.Render(text)
}

func (m Model) renderAnalyzeModal() string {
	var b strings.Builder
	b.WriteString(boldStyle.Render("Analyze File") + "\n\n")
	b.WriteString("Path relative to the project root\n")
	b.WriteString(m.fileInput.View() + "\n")
	if m.inputErr != "" {
		b.WriteString("\n" + errStyle.Render(m.inputErr) + "\n")
	}
	tool := "every configured tool"
	if t := m.selectedTool(); t != "" {
		tool = t
	}
	b.WriteString("\n" + dimStyle.Render("Runs "+tool+" · results are cached by content"))

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}

func (m Model) selectedFinding() *model.Finding {
	if len(m.findings) == 0 {
		return nil
	}
	idx := m.list.Index()
	if idx < 0 || idx >= len(m.findings) {
		return nil
	}
	return &m.findings[idx]
}
