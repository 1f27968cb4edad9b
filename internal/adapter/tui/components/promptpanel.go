package components

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"thoughtstream/internal/adapter/tui/theme"
)

// PromptPanelModel renders the current LLM prompt as markdown inside a
// bordered box. Rendering is cached until the prompt or width changes.
type PromptPanelModel struct {
	Style      string // glamour standard style; empty means auto-detect
	content    string
	width      int
	rendered   string
	mdRenderer *glamour.TermRenderer
	rendererW  int
}

// NewPromptPanel creates an empty prompt panel.
func NewPromptPanel() PromptPanelModel {
	return PromptPanelModel{}
}

// SetContent updates the markdown source.
func (m *PromptPanelModel) SetContent(md string) {
	if md == m.content {
		return
	}
	m.content = md
	m.rendered = ""
}

// SetWidth updates the outer width of the panel.
func (m *PromptPanelModel) SetWidth(w int) {
	if w == m.width {
		return
	}
	m.width = w
	m.rendered = ""
}

// View renders the panel.
func (m *PromptPanelModel) View() string {
	inner := m.width - theme.PromptBorder.GetHorizontalFrameSize()
	if inner < 10 {
		inner = 10
	}
	if m.rendered == "" {
		m.rendered = m.renderMarkdown(m.content, inner)
	}
	return theme.PromptBorder.Width(inner).Render(m.rendered)
}

func (m *PromptPanelModel) renderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return theme.TextMuted.Render("(no prompt)")
	}
	if m.mdRenderer == nil || m.rendererW != width {
		opt := glamour.WithAutoStyle()
		if m.Style != "" {
			opt = glamour.WithStandardStyle(m.Style)
		}
		r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(width))
		if err != nil {
			return content
		}
		m.mdRenderer = r
		m.rendererW = width
	}
	rendered, err := m.mdRenderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n")
}
