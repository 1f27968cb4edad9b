package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"thoughtstream/internal/adapter/tui/theme"
)

// StreamViewModel wraps a viewport over the render lines with smart
// auto-follow: new text keeps the view pinned to the end while the user is at
// the bottom, and scrolling up pauses following until they return.
type StreamViewModel struct {
	Viewport viewport.Model
	lines    []string
	cursor   bool
	width    int
	ready    bool
	atBottom bool

	// Styled completed lines keyed by source text, valid for cacheWidth.
	cache      []renderedLine
	cacheWidth int
}

type renderedLine struct {
	src string
	out string
}

// NewStreamView creates a stream view. The viewport is initialized lazily on
// the first SetSize.
func NewStreamView() StreamViewModel {
	return StreamViewModel{atBottom: true}
}

// SetSize sets the viewport dimensions and re-renders the content.
func (m *StreamViewModel) SetSize(w, h int) {
	m.width = w
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refreshContent()
	if m.atBottom {
		m.Viewport.GotoBottom()
	}
}

// SetLines replaces the displayed lines. The cursor glyph is drawn after the
// active (last) line when cursor is true.
func (m *StreamViewModel) SetLines(lines []string, cursor bool) {
	m.lines = lines
	m.cursor = cursor
	m.refreshContent()
	if m.atBottom {
		m.Viewport.GotoBottom()
	}
}

// GotoBottom jumps to the end and resumes auto-follow.
func (m *StreamViewModel) GotoBottom() {
	m.atBottom = true
	if m.ready {
		m.Viewport.GotoBottom()
	}
}

// GotoTop jumps to the start and pauses auto-follow.
func (m *StreamViewModel) GotoTop() {
	if !m.ready {
		return
	}
	m.Viewport.GotoTop()
	m.atBottom = m.Viewport.AtBottom()
}

// Following reports whether new text scrolls the view.
func (m StreamViewModel) Following() bool { return m.atBottom }

// Update handles viewport scrolling and tracks auto-follow state.
func (m StreamViewModel) Update(msg tea.Msg) (StreamViewModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atBottom = m.Viewport.AtBottom()
	return m, cmd
}

// View renders the stream viewport.
func (m StreamViewModel) View() string {
	if !m.ready {
		return "  Initializing..."
	}
	return m.Viewport.View()
}

// Render formats lines for display, wrapping each one at width when width is
// positive.
func Render(lines []string, cursor bool, width int) string {
	style := lineStyle(width)
	out := make([]string, len(lines))
	for i, line := range lines {
		if i == len(lines)-1 && cursor {
			line += theme.SymbolCursor
		}
		out[i] = style.Render(line)
	}
	return strings.Join(out, "\n")
}

func lineStyle(width int) lipgloss.Style {
	if width > 0 {
		return theme.Text.Width(width)
	}
	return theme.Text
}

// refreshContent renders like Render but only restyles lines whose text
// changed since the last call. The active line is always restyled.
func (m *StreamViewModel) refreshContent() {
	if !m.ready {
		return
	}
	if m.cacheWidth != m.width {
		m.cache = m.cache[:0]
		m.cacheWidth = m.width
	}
	n := len(m.lines)
	if len(m.cache) > n {
		m.cache = m.cache[:n]
	}

	style := lineStyle(m.width)
	out := make([]string, n)
	for i, line := range m.lines {
		if i == n-1 {
			if m.cursor {
				line += theme.SymbolCursor
			}
			out[i] = style.Render(line)
			break
		}
		if i < len(m.cache) && m.cache[i].src == line {
			out[i] = m.cache[i].out
			continue
		}
		r := renderedLine{src: line, out: style.Render(line)}
		if i < len(m.cache) {
			m.cache[i] = r
		} else {
			m.cache = append(m.cache, r)
		}
		out[i] = r.out
	}
	m.Viewport.SetContent(strings.Join(out, "\n"))
}
