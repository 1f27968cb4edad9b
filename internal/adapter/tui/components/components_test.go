package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/stretchr/testify/assert"

	"thoughtstream/internal/adapter/tui/theme"
	"thoughtstream/internal/domain"
)

func TestFormatMemory(t *testing.T) {
	assert.Equal(t, "--", FormatMemory(nil))
	assert.Equal(t, "512/2048 MB (75.0%)", FormatMemory(&domain.Memory{AvailableMB: 512, TotalMB: 2048, PercentUsed: 75}))
}

func TestStatusBarShowsConnectionState(t *testing.T) {
	sb := NewStatusBar()
	sb.SetWidth(120)
	assert.Contains(t, sb.View(), "offline")

	sb.Connected = true
	sb.NumRestarts = 9
	view := sb.View()
	assert.Contains(t, view, "live")
	assert.Contains(t, view, "9")
}

func TestRenderAppendsCursorToActiveLine(t *testing.T) {
	out := Render([]string{"done", "typing"}, true, 0)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	assert.NotContains(t, lines[0], theme.SymbolCursor)
	assert.Contains(t, lines[1], "typing"+theme.SymbolCursor)

	out = Render([]string{"typing"}, false, 0)
	assert.NotContains(t, out, theme.SymbolCursor)
}

func TestStreamViewFollowsUntilScrolledUp(t *testing.T) {
	v := NewStreamView()
	assert.Equal(t, "  Initializing...", v.View())

	v.SetSize(40, 5)
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "line"
	}
	v.SetLines(lines, false)
	assert.True(t, v.Viewport.AtBottom())

	v.GotoTop()
	assert.False(t, v.Following())
	v.SetLines(append(lines, "next"), false)
	assert.True(t, v.Viewport.AtTop())

	v.GotoBottom()
	assert.True(t, v.Following())
	assert.True(t, v.Viewport.AtBottom())
}

func TestStreamViewIncrementalRenderMatchesFull(t *testing.T) {
	steps := []struct {
		name   string
		lines  []string
		cursor bool
		width  int
	}{
		{"first char", []string{"a"}, true, 30},
		{"typing", []string{"ab"}, true, 30},
		{"new line", []string{"abc", ""}, true, 30},
		{"cursor off", []string{"abc", "d"}, false, 30},
		{"long line wraps", []string{"abc", strings.Repeat("word ", 12), "e"}, true, 30},
		{"resize", []string{"abc", strings.Repeat("word ", 12), "e"}, true, 18},
		{"history rewrite", []string{"xyz", "e"}, true, 18},
		{"reset", []string{""}, true, 18},
	}

	v := NewStreamView()
	v.SetSize(30, 200)
	for _, st := range steps {
		t.Run(st.name, func(t *testing.T) {
			if st.width != v.Viewport.Width {
				v.SetSize(st.width, 200)
			}
			v.SetLines(st.lines, st.cursor)

			ref := viewport.New(st.width, 200)
			ref.SetContent(Render(st.lines, st.cursor, st.width))
			assert.Equal(t, ref.View(), v.View())
			assert.LessOrEqual(t, len(v.cache), len(st.lines))
		})
	}
}

func TestStreamViewReusesCompletedLines(t *testing.T) {
	v := NewStreamView()
	v.SetSize(40, 10)
	v.SetLines([]string{"one", "two", "thr"}, true)
	assert.Len(t, v.cache, 2, "active line is not cached")

	v.cache[0].out = "sentinel"
	v.SetLines([]string{"one", "two", "three"}, true)
	assert.Contains(t, v.View(), "sentinel", "unchanged completed line is not restyled")

	v.SetLines([]string{"uno", "two", "three"}, true)
	assert.NotContains(t, v.View(), "sentinel")
}

func TestPromptPanelRendersMarkdown(t *testing.T) {
	p := NewPromptPanel()
	p.Style = "notty"
	p.SetWidth(60)
	assert.Contains(t, p.View(), "no prompt")

	p.SetContent("# Goal\n\nexplain the weather")
	view := p.View()
	assert.Contains(t, view, "Goal")
	assert.Contains(t, view, "explain the weather")
}
