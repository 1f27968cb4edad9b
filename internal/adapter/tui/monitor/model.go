package monitor

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"thoughtstream/internal/adapter/tui/components"
	"thoughtstream/internal/adapter/tui/theme"
	"thoughtstream/internal/domain"
)

// ModelDeps are dependencies injected into the monitor model.
type ModelDeps struct {
	Title         string
	OnVisibility  func(visible bool) // terminal focus in/out
	Logger        *slog.Logger
	MarkdownStyle string // glamour style for the prompt panel; empty = auto
}

// Model is the root Bubble Tea model for the monitor.
type Model struct {
	deps ModelDeps

	view    components.StreamViewModel
	status  components.StatusBarModel
	prompt  components.PromptPanelModel
	spinner spinner.Model

	snap       domain.Snapshot
	haveSnap   bool
	scrollSeq  uint64
	showPrompt bool
	width      int
	height     int
	quitting   bool
}

// NewModel creates the monitor model.
func NewModel(deps ModelDeps) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorAmber)

	if deps.Title == "" {
		deps.Title = "thoughtstream"
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	sb := components.NewStatusBar()
	sb.Hints = defaultHints()

	prompt := components.NewPromptPanel()
	prompt.Style = deps.MarkdownStyle

	return Model{
		deps:    deps,
		view:    components.NewStreamView(),
		status:  sb,
		prompt:  prompt,
		spinner: s,
		snap:    domain.Snapshot{Lines: []string{""}, IsLoading: true},
	}
}

func defaultHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Tab", Desc: "Prompt"},
		{Key: "j/k", Desc: "Scroll"},
		{Key: "g/G", Desc: "Top/End"},
		{Key: "q", Desc: "Quit"},
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.FocusMsg:
		m.setVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.setVisible(false)
		return m, nil

	case SnapshotMsg:
		m.applySnapshot(msg.Snapshot)
		return m, nil

	case NoticeMsg:
		m.status.Extra = msg.Text
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		m.showPrompt = !m.showPrompt
		m.layout()
		return m, nil
	case "g", "home":
		m.view.GotoTop()
		return m, nil
	case "G", "end":
		m.view.GotoBottom()
		return m, nil
	case "esc":
		m.status.Extra = ""
		return m, nil
	}

	// j/k, arrows, PgUp/PgDn are handled by the viewport keymap.
	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m *Model) setVisible(visible bool) {
	m.deps.Logger.Debug("monitor visibility changed", "visible", visible)
	if m.deps.OnVisibility != nil {
		m.deps.OnVisibility(visible)
	}
}

// applySnapshot installs snap unless an equal or newer one is already shown.
func (m *Model) applySnapshot(snap domain.Snapshot) {
	if m.haveSnap && snap.Seq <= m.snap.Seq {
		return
	}
	m.snap = snap
	m.haveSnap = true

	m.view.SetLines(snap.Lines, snap.CursorVisible)
	if snap.ScrollSeq != m.scrollSeq {
		m.scrollSeq = snap.ScrollSeq
		m.view.GotoBottom()
	}

	m.status.Connected = snap.Connected
	m.status.NumRestarts = snap.NumRestarts
	m.status.Memory = snap.LastMemory
	m.prompt.SetContent(snap.Prompt)
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	w := theme.Clamp(m.width, 1, theme.MaxContentWidth)
	m.status.SetWidth(m.width)
	m.prompt.SetWidth(m.width)

	bodyH := m.height - 2 // title + status bar
	if m.showPrompt {
		bodyH -= lipgloss.Height(m.prompt.View())
	}
	m.view.SetSize(w, max(bodyH, 1))
}

// Snapshot returns the snapshot currently displayed.
func (m Model) Snapshot() domain.Snapshot { return m.snap }

// PromptVisible reports whether the prompt panel is open.
func (m Model) PromptVisible() bool { return m.showPrompt }

// View renders the monitor.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sections []string
	sections = append(sections, m.header())
	sections = append(sections, m.view.View())
	if m.showPrompt {
		sections = append(sections, m.prompt.View())
	}
	sections = append(sections, m.status.View())
	return strings.Join(sections, "\n")
}

func (m Model) header() string {
	title := theme.Title.Render(m.deps.Title)
	switch {
	case m.snap.IsRestarting:
		title += " " + m.spinner.View() + theme.TextWarning.Render("restarting"+theme.SymbolEllipsis)
	case m.snap.IsLoading:
		title += " " + m.spinner.View() + theme.TextMuted.Render("loading"+theme.SymbolEllipsis)
	}
	if !m.view.Following() {
		title += "  " + theme.Dim.Render("(paused, G to follow)")
	}
	if m.width > 0 {
		title = truncate.StringWithTail(title, uint(m.width), theme.SymbolEllipsis)
	}
	return title
}
